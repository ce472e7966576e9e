package repository

import (
	"github.com/wkchan/callgw/internal/model"
	"gorm.io/gorm"
)

type CallLogRepository struct {
	db *gorm.DB
}

func NewCallLogRepository(db *gorm.DB) *CallLogRepository {
	return &CallLogRepository{db: db}
}

func (r *CallLogRepository) Create(call *model.CallLog) error {
	return r.db.Create(call).Error
}

func (r *CallLogRepository) Update(call *model.CallLog) error {
	return r.db.Save(call).Error
}

func (r *CallLogRepository) Recent(limit int) ([]model.CallLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var calls []model.CallLog
	err := r.db.Order("started_at desc").Limit(limit).Find(&calls).Error
	return calls, err
}

func (r *CallLogRepository) FindByNumber(number string) ([]model.CallLog, error) {
	var calls []model.CallLog
	err := r.db.Where("number = ?", number).Order("started_at desc").Find(&calls).Error
	return calls, err
}

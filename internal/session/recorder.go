package session

import (
	"github.com/wkchan/callgw/internal/model"
	"github.com/wkchan/callgw/internal/repository"
	"github.com/wkchan/callgw/pkg/logger"
)

// Recorder persists call history rows through the repository. A row is created
// when a call opens and finalized (status, end time, duration) when it closes.
type Recorder struct {
	repo    *repository.CallLogRepository
	current *model.CallLog
}

func NewRecorder(repo *repository.CallLogRepository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) CallStarted(ev CallStarted) {
	call := &model.CallLog{
		Direction: string(ev.Direction),
		Number:    ev.Number,
		StartedAt: ev.At,
		Status:    "active",
	}
	if err := r.repo.Create(call); err != nil {
		logger.Log.Errorf("Failed to save call record: %v", err)
		return
	}
	r.current = call
}

func (r *Recorder) CallEnded(ev CallEnded) {
	if r.current == nil {
		return
	}
	ended := ev.At
	r.current.EndedAt = &ended
	r.current.Status = string(ev.Status)
	r.current.Duration = int(ended.Sub(r.current.StartedAt).Seconds())
	if err := r.repo.Update(r.current); err != nil {
		logger.Log.Errorf("Failed to finalize call record: %v", err)
	}
	r.current = nil
}

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wkchan/callgw/internal/modem"
	"github.com/wkchan/callgw/internal/repository"
)

type CallHandler struct {
	machine *modem.Machine
	monitor *modem.SignalMonitor
	repo    *repository.CallLogRepository
}

func NewCallHandler(machine *modem.Machine, monitor *modem.SignalMonitor, repo *repository.CallLogRepository) *CallHandler {
	return &CallHandler{machine: machine, monitor: monitor, repo: repo}
}

func (h *CallHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/call/dial", h.Dial)
	rg.POST("/call/answer", h.Answer)
	rg.POST("/call/hangup", h.Hangup)
	rg.GET("/call/state", h.State)
	rg.GET("/signal", h.Signal)
	rg.GET("/calls", h.ListCalls)
}

func (h *CallHandler) Dial(c *gin.Context) {
	var req struct {
		Number string `json:"number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.machine.Dial(req.Number); err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.machine.Snapshot())
}

func (h *CallHandler) Answer(c *gin.Context) {
	if err := h.machine.Answer(); err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.machine.Snapshot())
}

func (h *CallHandler) Hangup(c *gin.Context) {
	if err := h.machine.Hangup(); err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.machine.Snapshot())
}

func (h *CallHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.machine.Snapshot())
}

func (h *CallHandler) Signal(c *gin.Context) {
	reading, err := h.monitor.Query()
	if err != nil {
		h.callError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rssi":    reading.RSSI,
		"ber":     reading.BER,
		"quality": reading.Quality.String(),
	})
}

func (h *CallHandler) ListCalls(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	var err error
	if number := c.Query("number"); number != "" {
		calls, ferr := h.repo.FindByNumber(number)
		if ferr == nil {
			c.JSON(http.StatusOK, calls)
			return
		}
		err = ferr
	} else {
		calls, ferr := h.repo.Recent(limit)
		if ferr == nil {
			c.JSON(http.StatusOK, calls)
			return
		}
		err = ferr
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// callError maps engine and state machine errors to HTTP statuses.
func (h *CallHandler) callError(c *gin.Context, err error) {
	switch {
	case modem.IsInvalidState(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": h.machine.State().String()})
	case modem.IsRejected(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case modem.IsCommandTimeout(err):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

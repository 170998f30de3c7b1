package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"reservo/backend/internal/domain"
)

type dayScheduleRequest struct {
	IsOpen bool               `json:"isOpen"`
	Blocks []domain.TimeBlock `json:"blocks"`
}

type overrideRequest struct {
	Date   string `json:"date" binding:"required"`
	Kind   string `json:"kind" binding:"required"`
	Reason string `json:"reason"`
}

type horizonRequest struct {
	Days int `json:"days" binding:"required"`
}

func weekdayParam(c *gin.Context, name string) (domain.Weekday, bool) {
	wd, err := domain.ParseWeekday(strings.ToLower(c.Param(name)))
	if err != nil {
		badRequest(c, err.Error())
		return 0, false
	}
	return wd, true
}

func (h *handler) weekSchedule(c *gin.Context) {
	days, err := h.schedule.WeekSchedule(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, days)
}

func (h *handler) daySchedule(c *gin.Context) {
	wd, valid := weekdayParam(c, "weekday")
	if !valid {
		return
	}
	day, err := h.schedule.DaySchedule(c.Request.Context(), wd)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, day)
}

func (h *handler) setDaySchedule(c *gin.Context) {
	wd, valid := weekdayParam(c, "weekday")
	if !valid {
		return
	}
	var req dayScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	day, err := h.schedule.SetDaySchedule(c.Request.Context(), wd, domain.DaySchedule{IsOpen: req.IsOpen, Blocks: req.Blocks})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, day)
}

// copyDaySchedule copies :weekday onto the weekday given by ?to=.
func (h *handler) copyDaySchedule(c *gin.Context) {
	from, valid := weekdayParam(c, "weekday")
	if !valid {
		return
	}
	to, err := domain.ParseWeekday(strings.ToLower(c.Query("to")))
	if err != nil {
		badRequest(c, "to: "+err.Error())
		return
	}
	day, err := h.schedule.CopyDaySchedule(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, day)
}

func (h *handler) overrides(c *gin.Context) {
	from, valid := optionalDate(c, "from")
	if !valid {
		return
	}
	to, valid := optionalDate(c, "to")
	if !valid {
		return
	}
	out, err := h.schedule.OverridesBetween(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

func (h *handler) addOverride(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	o, err := h.schedule.AddOverride(c.Request.Context(), req.Date, domain.OverrideKind(req.Kind), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, o)
}

func (h *handler) removeOverride(c *gin.Context) {
	if err := h.schedule.RemoveOverride(c.Request.Context(), c.Param("date")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Message: "override removed"})
}

func (h *handler) horizon(c *gin.Context) {
	days, err := h.schedule.Horizon(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"days": days})
}

func (h *handler) setHorizon(c *gin.Context) {
	var req horizonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.schedule.SetHorizon(c.Request.Context(), req.Days); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"days": req.Days})
}

func optionalDate(c *gin.Context, name string) (domain.Date, bool) {
	raw := c.Query(name)
	if raw == "" {
		return domain.Date{}, true
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		badRequest(c, name+": "+err.Error())
		return domain.Date{}, false
	}
	return d, true
}

package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reservo/backend/internal/report"
	"reservo/backend/internal/service/booking"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type reservationRequest struct {
	ServiceID   string `json:"serviceId" binding:"required"`
	StaffID     string `json:"staffId"`
	Date        string `json:"date" binding:"required"`
	Start       string `json:"start" binding:"required"`
	ClientName  string `json:"clientName"`
	ClientEmail string `json:"clientEmail"`
	ClientPhone string `json:"clientPhone"`
	Notes       string `json:"notes"`
}

func (h *handler) availability(c *gin.Context) {
	day, err := h.booking.AvailableSlots(c.Request.Context(), booking.SlotQuery{
		ServiceID: c.Query("service_id"),
		Date:      c.Query("date"),
		StaffID:   c.Query("staff_id"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, day)
}

func (h *handler) availabilityDays(c *gin.Context) {
	days, err := h.booking.AvailableDays(c.Request.Context(),
		c.Query("service_id"), c.Query("from"), c.Query("to"), c.Query("staff_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, days)
}

func (h *handler) listReservations(c *gin.Context) {
	in, valid := listInput(c)
	if !valid {
		return
	}
	out, err := h.booking.Reservations(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

func (h *handler) createReservation(c *gin.Context) {
	var req reservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	r, err := h.booking.CreateReservation(c.Request.Context(), booking.CreateInput{
		ServiceID:      req.ServiceID,
		StaffID:        req.StaffID,
		Date:           req.Date,
		Start:          req.Start,
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		ClientPhone:    req.ClientPhone,
		Notes:          req.Notes,
		IdempotencyKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, r)
}

func (h *handler) getReservation(c *gin.Context) {
	id, valid := reservationID(c)
	if !valid {
		return
	}
	r, err := h.booking.Reservation(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

func (h *handler) cancelReservation(c *gin.Context) {
	id, valid := reservationID(c)
	if !valid {
		return
	}
	r, err := h.booking.CancelReservation(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

func (h *handler) reservationsReport(c *gin.Context) {
	in, valid := listInput(c)
	if !valid {
		return
	}
	in.Limit = 0
	ctx := c.Request.Context()

	reservations, err := h.booking.Reservations(ctx, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	services, err := h.catalog.Services(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, reservations, services); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportName(in)))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func reportName(in booking.ListInput) string {
	name := "reservations"
	if in.From != "" {
		name += "_" + in.From
	}
	if in.To != "" {
		name += "_" + in.To
	}
	return name + ".xlsx"
}

func listInput(c *gin.Context) (booking.ListInput, bool) {
	in := booking.ListInput{
		From:      c.Query("from"),
		To:        c.Query("to"),
		ServiceID: c.Query("service_id"),
		StaffID:   c.Query("staff_id"),
		Status:    c.Query("status"),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "limit must be a number")
			return booking.ListInput{}, false
		}
		in.Limit = n
	}
	return in, true
}

func reservationID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

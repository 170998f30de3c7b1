package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/service/catalog"
)

type serviceRequest struct {
	ID              string `json:"id"`
	Name            string `json:"name" binding:"required"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	Kind            string `json:"kind"`
	PriceCents      int64  `json:"priceCents"`
	DurationMinutes int    `json:"durationMinutes"`
	RequiresStaff   bool   `json:"requiresStaff"`
	Active          *bool  `json:"active"`
}

// input rejects lengths outside the offered duration options.
func (r serviceRequest) input() (catalog.ServiceInput, error) {
	if !domain.IsDurationOption(r.DurationMinutes) {
		return catalog.ServiceInput{}, fmt.Errorf("durationMinutes must be one of %v", domain.DurationOptions)
	}
	return catalog.ServiceInput{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		Category:        r.Category,
		Kind:            domain.ServiceKind(r.Kind),
		PriceCents:      r.PriceCents,
		DurationMinutes: r.DurationMinutes,
		RequiresStaff:   r.RequiresStaff,
		Active:          r.Active,
	}, nil
}

type staffRequest struct {
	ID       string   `json:"id"`
	Name     string   `json:"name" binding:"required"`
	Position string   `json:"position"`
	Phone    string   `json:"phone"`
	Email    string   `json:"email"`
	Active   *bool    `json:"active"`
	Services []string `json:"services"`
}

func (r staffRequest) input() catalog.StaffInput {
	return catalog.StaffInput{
		ID:       r.ID,
		Name:     r.Name,
		Position: r.Position,
		Phone:    r.Phone,
		Email:    r.Email,
		Active:   r.Active,
		Services: r.Services,
	}
}

func (h *handler) listServices(c *gin.Context) {
	out, err := h.catalog.Services(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

func (h *handler) createService(c *gin.Context) {
	var req serviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	in, err := req.input()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	svc, err := h.catalog.CreateService(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, svc)
}

func (h *handler) getService(c *gin.Context) {
	svc, err := h.catalog.Service(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, svc)
}

func (h *handler) updateService(c *gin.Context) {
	var req serviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	in, err := req.input()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	svc, err := h.catalog.UpdateService(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, svc)
}

func (h *handler) deleteService(c *gin.Context) {
	if err := h.catalog.DeleteService(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Message: "service deleted"})
}

func (h *handler) capableStaff(c *gin.Context) {
	out, err := h.catalog.CapableStaff(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

func (h *handler) listStaff(c *gin.Context) {
	out, err := h.catalog.StaffMembers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

func (h *handler) createStaff(c *gin.Context) {
	var req staffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	m, err := h.catalog.CreateStaff(c.Request.Context(), req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

func (h *handler) getStaff(c *gin.Context) {
	m, err := h.catalog.Staff(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// updateStaff keeps the capability set when the body has no services field.
func (h *handler) updateStaff(c *gin.Context) {
	var req staffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	m, err := h.catalog.UpdateStaff(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

func (h *handler) deleteStaff(c *gin.Context) {
	if err := h.catalog.DeleteStaff(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Message: "staff member deleted"})
}

func (h *handler) assignService(c *gin.Context) {
	m, err := h.catalog.AssignService(c.Request.Context(), c.Param("id"), c.Param("serviceId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

func (h *handler) unassignService(c *gin.Context) {
	m, err := h.catalog.UnassignService(c.Request.Context(), c.Param("id"), c.Param("serviceId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// Package http serves the admin API used to configure the business and to
// inspect and manage reservations.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"reservo/backend/internal/availability"
	"reservo/backend/internal/domain"
	"reservo/backend/internal/service/booking"
	"reservo/backend/internal/service/catalog"
)

type ScheduleService interface {
	DaySchedule(ctx context.Context, weekday domain.Weekday) (domain.DaySchedule, error)
	WeekSchedule(ctx context.Context) ([]domain.DaySchedule, error)
	SetDaySchedule(ctx context.Context, weekday domain.Weekday, day domain.DaySchedule) (domain.DaySchedule, error)
	CopyDaySchedule(ctx context.Context, from, to domain.Weekday) (domain.DaySchedule, error)
	OverridesBetween(ctx context.Context, from, to domain.Date) ([]domain.DateOverride, error)
	AddOverride(ctx context.Context, date string, kind domain.OverrideKind, reason string) (domain.DateOverride, error)
	RemoveOverride(ctx context.Context, date string) error
	Horizon(ctx context.Context) (int, error)
	SetHorizon(ctx context.Context, days int) error
}

type CatalogService interface {
	CreateService(ctx context.Context, in catalog.ServiceInput) (domain.Service, error)
	Service(ctx context.Context, id string) (domain.Service, error)
	Services(ctx context.Context) ([]domain.Service, error)
	UpdateService(ctx context.Context, id string, in catalog.ServiceInput) (domain.Service, error)
	DeleteService(ctx context.Context, id string) error
	CreateStaff(ctx context.Context, in catalog.StaffInput) (domain.StaffMember, error)
	Staff(ctx context.Context, id string) (domain.StaffMember, error)
	StaffMembers(ctx context.Context) ([]domain.StaffMember, error)
	UpdateStaff(ctx context.Context, id string, in catalog.StaffInput) (domain.StaffMember, error)
	DeleteStaff(ctx context.Context, id string) error
	AssignService(ctx context.Context, staffID, serviceID string) (domain.StaffMember, error)
	UnassignService(ctx context.Context, staffID, serviceID string) (domain.StaffMember, error)
	CapableStaff(ctx context.Context, serviceID string) ([]domain.StaffMember, error)
}

type BookingService interface {
	AvailableSlots(ctx context.Context, q booking.SlotQuery) (availability.Day, error)
	AvailableDays(ctx context.Context, serviceID, from, to, staffID string) ([]availability.Day, error)
	CreateReservation(ctx context.Context, in booking.CreateInput) (domain.Reservation, error)
	CancelReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	Reservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	Reservations(ctx context.Context, in booking.ListInput) ([]domain.Reservation, error)
}

// Deps are the services behind the admin API. Ready, when set, backs /readyz.
type Deps struct {
	Schedule ScheduleService
	Catalog  CatalogService
	Booking  BookingService
	Ready    func(ctx context.Context) error
	Log      zerolog.Logger
}

type handler struct {
	schedule ScheduleService
	catalog  CatalogService
	booking  BookingService
	ready    func(ctx context.Context) error
	log      zerolog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	h := &handler{
		schedule: d.Schedule,
		catalog:  d.Catalog,
		booking:  d.Booking,
		ready:    d.Ready,
		log:      d.Log.With().Str("component", "http").Logger(),
	}

	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, response{Success: true, Message: "ok"})
	})
	router.GET("/readyz", h.readyz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		sched := v1.Group("/schedule")
		{
			sched.GET("/days", h.weekSchedule)
			sched.GET("/days/:weekday", h.daySchedule)
			sched.PUT("/days/:weekday", h.setDaySchedule)
			sched.POST("/days/:weekday/copy", h.copyDaySchedule)
			sched.GET("/overrides", h.overrides)
			sched.POST("/overrides", h.addOverride)
			sched.DELETE("/overrides/:date", h.removeOverride)
			sched.GET("/horizon", h.horizon)
			sched.PUT("/horizon", h.setHorizon)
		}

		services := v1.Group("/services")
		{
			services.GET("", h.listServices)
			services.POST("", h.createService)
			services.GET("/:id", h.getService)
			services.PUT("/:id", h.updateService)
			services.DELETE("/:id", h.deleteService)
			services.GET("/:id/staff", h.capableStaff)
		}

		staff := v1.Group("/staff")
		{
			staff.GET("", h.listStaff)
			staff.POST("", h.createStaff)
			staff.GET("/:id", h.getStaff)
			staff.PUT("/:id", h.updateStaff)
			staff.DELETE("/:id", h.deleteStaff)
			staff.PUT("/:id/services/:serviceId", h.assignService)
			staff.DELETE("/:id/services/:serviceId", h.unassignService)
		}

		v1.GET("/availability", h.availability)
		v1.GET("/availability/days", h.availabilityDays)

		reservations := v1.Group("/reservations")
		{
			reservations.GET("", h.listReservations)
			reservations.POST("", h.createReservation)
			reservations.GET("/:id", h.getReservation)
			reservations.POST("/:id/cancel", h.cancelReservation)
		}

		v1.GET("/reports/reservations.xlsx", h.reservationsReport)
	}

	return router
}

func (h *handler) readyz(c *gin.Context) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			h.log.Warn().Err(err).Msg("readiness check failed")
			c.JSON(http.StatusServiceUnavailable, response{Success: false, Error: "not ready"})
			return
		}
	}
	c.JSON(http.StatusOK, response{Success: true, Message: "ready"})
}

func (h *handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := h.log.Debug()
		if status >= http.StatusInternalServerError {
			ev = h.log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	}
}

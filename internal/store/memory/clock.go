package memory

import (
	"time"

	"reservo/backend/internal/store"
)

var now = func() time.Time { return time.Now().UTC() }

var (
	_ store.ScheduleRepository    = (*ScheduleRepo)(nil)
	_ store.CatalogRepository     = (*CatalogRepo)(nil)
	_ store.ReservationRepository = (*ReservationRepo)(nil)
)

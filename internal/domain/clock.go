package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const MinutesPerDay = 24 * 60

var ErrInvalidClockTime = errors.New("invalid clock time")

// ClockTime is a time of day at minute resolution, counted in minutes since
// local midnight. 24:00 (1440) is representable so a block can close at the
// end of the day.
type ClockTime int

func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClockTime parses "HH:MM". "24:00" is accepted.
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" {
		return MinutesPerDay, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	return NewClockTime(t.Hour(), t.Minute()), nil
}

func MustParseClockTime(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) Valid() bool {
	return c >= 0 && c <= MinutesPerDay
}

func (c ClockTime) Add(minutes int) ClockTime {
	return c + ClockTime(minutes)
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidClockTime, string(b))
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c ClockTime) Value() (driver.Value, error) {
	return int64(c), nil
}

func (c *ClockTime) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*c = ClockTime(v)
	case int32:
		*c = ClockTime(v)
	case nil:
		*c = 0
	default:
		return fmt.Errorf("domain.ClockTime: unsupported scan type %T", src)
	}
	return nil
}

// TimeSlot is a derived bookable interval. It is never persisted.
type TimeSlot struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

func (s TimeSlot) Overlaps(o TimeSlot) bool {
	return s.Start < o.End && o.Start < s.End
}

func (s TimeSlot) String() string {
	return s.Start.String() + "-" + s.End.String()
}

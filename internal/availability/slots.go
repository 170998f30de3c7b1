package availability

import (
	"sort"

	"reservo/backend/internal/domain"
)

// GenerateSlots cuts each block into consecutive duration-sized slots starting
// at the block's open time. A slot never crosses its block's close time and
// never spans two blocks; a trailing remainder shorter than duration is
// dropped. Blocks are normalized first, so unordered or overlapping input is
// tolerated.
func GenerateSlots(blocks []domain.TimeBlock, durationMinutes int) []domain.TimeSlot {
	slots := []domain.TimeSlot{}
	if durationMinutes <= 0 {
		return slots
	}

	for _, b := range NormalizeBlocks(blocks) {
		// remaining room, not cursor+duration, which overflows for huge durations
		for cursor := b.Open; durationMinutes <= int(b.Close-cursor); cursor = cursor.Add(durationMinutes) {
			slots = append(slots, domain.TimeSlot{Start: cursor, End: cursor.Add(durationMinutes)})
		}
	}
	return slots
}

// NormalizeBlocks drops invalid blocks, orders the rest by open time and
// merges blocks that strictly overlap into their union. Blocks that only
// touch stay separate.
func NormalizeBlocks(blocks []domain.TimeBlock) []domain.TimeBlock {
	valid := make([]domain.TimeBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.Validate() == nil {
			valid = append(valid, b)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Open != valid[j].Open {
			return valid[i].Open < valid[j].Open
		}
		return valid[i].Close < valid[j].Close
	})

	out := make([]domain.TimeBlock, 0, len(valid))
	for _, b := range valid {
		if n := len(out); n > 0 && b.Open < out[n-1].Close {
			if b.Close > out[n-1].Close {
				out[n-1].Close = b.Close
			}
			continue
		}
		out = append(out, b)
	}
	return out
}

// InHorizon reports whether date lies in [today, today+horizon].
func InHorizon(date, today domain.Date, horizon int) bool {
	if horizon < 0 || date.Before(today) {
		return false
	}
	return !date.After(today.AddDays(horizon))
}

package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
)

const (
	openHour  = 8
	closeHour = 18
)

var timeSlots = buildTimeSlots()

// buildTimeSlots lists the half-hour labels of a working day, 08:00-08:30 to 17:30-18:00.
func buildTimeSlots() []string {
	slots := make([]string, 0, (closeHour-openHour)*2)
	for h := openHour; h < closeHour; h++ {
		slots = append(slots,
			fmt.Sprintf("%02d:00-%02d:30", h, h),
			fmt.Sprintf("%02d:30-%02d:00", h, h+1),
		)
	}
	return slots
}

// TimeSlots returns a copy of the bookable slot labels in day order.
func TimeSlots() []string {
	out := make([]string, len(timeSlots))
	copy(out, timeSlots)
	return out
}

func ValidSlot(label string) error {
	for _, s := range timeSlots {
		if s == label {
			return nil
		}
	}
	return apperr.Validation("unknown time slot %q", label)
}

func slotKey(shopID int64, date time.Time, slot string) string {
	return fmt.Sprintf("%d:%s:%s", shopID, dayString(date), slot)
}

// nextFreeBay returns the requested bay when it is free, or the lowest free
// bay in [1, bays] when requested is 0. It returns 0 when nothing fits.
func nextFreeBay(taken []int, bays, requested int) int {
	used := make(map[int]bool, len(taken))
	for _, b := range taken {
		used[b] = true
	}
	if requested > 0 {
		if requested <= bays && !used[requested] {
			return requested
		}
		return 0
	}
	for b := 1; b <= bays; b++ {
		if !used[b] {
			return b
		}
	}
	return 0
}

func (s *Service) capacity(ctx context.Context, shopID int64) (int, error) {
	sh, err := s.collab.Shops.GetShop(ctx, shopID)
	if err != nil {
		return 0, err
	}
	return sh.Capacity(s.cfg.DefaultBays), nil
}

// CheckSlotAvailable reports whether (shop, date, slot) still has a free bay.
func (s *Service) CheckSlotAvailable(ctx context.Context, shopID int64, date time.Time, slot string) (bool, error) {
	if err := ValidSlot(slot); err != nil {
		return false, err
	}
	bays, err := s.capacity(ctx, shopID)
	if err != nil {
		return false, err
	}
	taken, err := s.repo.TakenBays(ctx, shopID, Day(date), slot)
	if err != nil {
		return false, err
	}
	return len(taken) < bays, nil
}

// AvailableSlots lists the slots of date that still have bay capacity.
func (s *Service) AvailableSlots(ctx context.Context, shopID int64, date time.Time) ([]string, error) {
	bays, err := s.capacity(ctx, shopID)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.ActiveCountsBySlot(ctx, shopID, Day(date))
	if err != nil {
		return nil, err
	}

	free := make([]string, 0, len(timeSlots))
	for _, slot := range timeSlots {
		if counts[slot] < bays {
			free = append(free, slot)
		}
	}
	return free, nil
}

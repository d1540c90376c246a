package booking

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/metrics"
)

// MarkBreached moves pending appointments dated before today to breached and
// cancels their unpaid orders. Meant to be called by the breach worker.
// It returns how many appointments were marked.
func (s *Service) MarkBreached(ctx context.Context, today time.Time) (int, error) {
	stale, err := s.repo.FindStalePending(ctx, Day(today))
	if err != nil {
		return 0, fmt.Errorf("find stale pending appointments: %w", err)
	}

	marked := 0
	for _, appt := range stale {
		if err := s.breach(ctx, appt.ID); err != nil {
			s.log.Error("failed to mark appointment breached",
				zap.Int64("appointment_id", appt.ID),
				zap.Error(err),
			)
			continue
		}
		marked++
	}

	if marked > 0 {
		metrics.AppointmentsBreached(marked)
		s.log.Info("appointments breached", zap.Int("count", marked))
	}
	return marked, nil
}

func (s *Service) breach(ctx context.Context, id int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		appt, err := s.repo.LockAppointment(ctx, id)
		if err != nil {
			return err
		}
		// a customer or shop may have moved it since the scan
		if appt.Status != AppointmentPending {
			return nil
		}

		appt.Status = AppointmentBreached
		if err := s.repo.UpdateAppointment(ctx, *appt); err != nil {
			return err
		}
		orderID, err := s.cancelDefaultOrder(ctx, appt.ID)
		if err != nil {
			return err
		}
		return s.logEvent(ctx, EventAppointmentBreached, &appt.ID, orderID, map[string]any{
			"reason": "worker",
			"date":   dayString(appt.Date),
		})
	})
}

package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// nextQueueNumber assigns a booking's position within the doctor's queue
// for one appointment date: the count of non-cancelled bookings already on
// that date, plus one. Positions are never reused after a cancellation or
// failure, so the number reflects creation order among ever-valid bookings
// rather than a live ordinal.
//
// Must run on the same transaction-scoped store as the insert or rebind it
// backs; the slot/booking row lock held there is what stops two concurrent
// creations from both observing the same count.
func nextQueueNumber(ctx context.Context, store Store, doctorID uuid.UUID, date time.Time, exclude *uuid.UUID) (int, error) {
	count, err := store.CountActiveBookings(ctx, doctorID, date, exclude)
	if err != nil {
		return 0, fmt.Errorf("next queue number: %w", err)
	}
	return count + 1, nil
}

package progression

import (
	"context"
	"fmt"
	"time"

	"github.com/storypets/storypets/internal/domain"
	"github.com/storypets/storypets/internal/infra/docstore"
)

// StartSleep opens a sleep window for a pet. A non-positive duration falls
// back to the default window.
func (q *QuestService) StartSleep(ctx context.Context, userID, petID string, duration time.Duration) error {
	return q.StartSleepAt(ctx, userID, petID, duration, time.Now())
}

// StartSleepAt is StartSleep with an injected clock. The window is written as
// a plain field batch: a single writer is expected per user, and expiry is
// derived from sleepEndAt at read time rather than cleared by a timer.
func (q *QuestService) StartSleepAt(ctx context.Context, userID, petID string, duration time.Duration, now time.Time) error {
	if err := validateIDs(userID, petID); err != nil {
		return err
	}
	if duration <= 0 {
		duration = domain.SleepDuration
	}
	ops := docstore.DocOps{
		Collection: QuestStateCollection,
		ID:         userID,
		Ops: []docstore.FieldOp{
			docstore.SetIfMissing(now, "createdAt"),
			docstore.SetIfMissing(int64(0), "pets", petID, "activityIndex"),
			docstore.Set(now, "pets", petID, "sleepStartAt"),
			docstore.Set(now.Add(duration), "pets", petID, "sleepEndAt"),
			docstore.Set(now, "updatedAt"),
		},
	}
	if err := q.store.Apply(ctx, ops); err != nil {
		return fmt.Errorf("start sleep: %w", err)
	}
	q.log.Debug().
		Str("user", userID).
		Str("pet", petID).
		Dur("duration", duration).
		Msg("sleep window started")
	return nil
}

// ClearSleep removes a pet's sleep window ahead of its natural expiry.
// The pet must already have a quest record; there is nothing to wake
// otherwise.
func (q *QuestService) ClearSleep(ctx context.Context, userID, petID string) error {
	if err := validateIDs(userID, petID); err != nil {
		return err
	}
	now := time.Now()
	snap, err := q.store.Get(ctx, QuestStateCollection, userID)
	if err != nil {
		return fmt.Errorf("clear sleep: %w", err)
	}
	qs, err := DecodeQuestState(snap, now)
	if err != nil {
		return fmt.Errorf("clear sleep: %w", err)
	}
	if qs.Pets[petID] == nil {
		return domain.ErrUnknownPet
	}
	ops := docstore.DocOps{
		Collection: QuestStateCollection,
		ID:         userID,
		Ops: []docstore.FieldOp{
			docstore.Delete("pets", petID, "sleepStartAt"),
			docstore.Delete("pets", petID, "sleepEndAt"),
			docstore.Set(now, "updatedAt"),
		},
	}
	if err := q.store.Apply(ctx, ops); err != nil {
		return fmt.Errorf("clear sleep: %w", err)
	}
	return nil
}

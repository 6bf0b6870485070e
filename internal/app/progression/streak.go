package progression

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/storypets/storypets/internal/domain"
	"github.com/storypets/storypets/internal/infra/docstore"
	"github.com/storypets/storypets/internal/infra/metrics"
)

const streakWindow = 24 * time.Hour

// StreakService maintains the daily login streak.
type StreakService struct {
	store *docstore.Store
	log   zerolog.Logger
}

func NewStreakService(store *docstore.Store, log zerolog.Logger) *StreakService {
	return &StreakService{store: store, log: log}
}

// RecordSignIn applies one sign-in to the streak and returns the resulting
// count.
func (s *StreakService) RecordSignIn(ctx context.Context, userID string) (int, error) {
	return s.RecordSignInAt(ctx, userID, time.Now())
}

// RecordSignInAt is RecordSignIn with an injected clock. The rules:
//
//   - A gap since the last login in (0, 24h] increments the streak, but at
//     most once per 24h window, guarded by lastStreakIncrementAt.
//   - No previous login, a zero or negative gap, or a gap over 24h resets
//     the streak to zero.
//   - lastLoginAt always becomes now.
//
// Read and write run in one optimistic transaction so two devices signing in
// together cannot double-increment.
func (s *StreakService) RecordSignInAt(ctx context.Context, userID string, now time.Time) (int, error) {
	if userID == "" {
		return 0, domain.ErrEmptyUserID
	}

	var (
		streak      int
		incremented bool
		reset       bool
	)
	err := s.store.RunTransaction(ctx, func(tx *docstore.Txn) error {
		incremented, reset = false, false
		snap, err := tx.Get(UserStateCollection, userID)
		if err != nil {
			return err
		}
		us, err := DecodeUserState(snap, now)
		if err != nil {
			return err
		}

		previous := us.LastLoginAt
		switch {
		case previous == nil:
			us.Streak = 0
			reset = true
		default:
			gap := now.Sub(*previous)
			if gap > 0 && gap <= streakWindow {
				guard := us.LastStreakIncrementAt
				if guard == nil || now.Sub(*guard) > streakWindow {
					us.Streak++
					t := now
					us.LastStreakIncrementAt = &t
					incremented = true
				}
				// Guard active: streak unchanged.
			} else {
				us.Streak = 0
				reset = true
			}
		}

		login := now
		us.LastLoginAt = &login
		us.UpdatedAt = now
		streak = us.Streak
		return tx.SetJSON(UserStateCollection, userID, us)
	})
	if err != nil {
		return 0, fmt.Errorf("record sign-in: %w", err)
	}

	if incremented {
		metrics.StreakIncrements.Inc()
	}
	if reset {
		metrics.StreakResets.Inc()
	}
	s.log.Debug().
		Str("user", userID).
		Int("streak", streak).
		Bool("incremented", incremented).
		Msg("sign-in recorded")
	return streak, nil
}

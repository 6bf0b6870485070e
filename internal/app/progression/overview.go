package progression

import (
	"context"
	"fmt"
	"time"

	"github.com/storypets/storypets/internal/domain"
)

// Overview returns the user's coins, streak, and per-pet level summary.
func (p *ProgressService) Overview(ctx context.Context, userID string) (domain.Overview, error) {
	if userID == "" {
		return domain.Overview{}, domain.ErrEmptyUserID
	}
	snap, err := p.store.Get(ctx, UserStateCollection, userID)
	if err != nil {
		return domain.Overview{}, fmt.Errorf("overview: %w", err)
	}
	us, err := DecodeUserState(snap, time.Now())
	if err != nil {
		return domain.Overview{}, fmt.Errorf("overview: %w", err)
	}
	return OverviewOf(us), nil
}

// OverviewOf derives the read model from a user document. Levels are
// recomputed from lifetime counts on every read and never stored.
func OverviewOf(us domain.UserState) domain.Overview {
	ov := domain.Overview{
		Coins:  us.Coins,
		Streak: us.Streak,
		Pets:   make(map[string]domain.PetOverview, len(us.Pets)),
	}
	for pet, total := range us.Pets {
		ov.Pets[pet] = domain.PetOverviewFor(total)
	}
	return ov
}

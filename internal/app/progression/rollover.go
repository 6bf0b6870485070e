package progression

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/storypets/storypets/internal/domain"
	"github.com/storypets/storypets/internal/infra/docstore"
	"github.com/storypets/storypets/internal/infra/metrics"
)

// QuestService drives the quest lifecycle: completion, cooldown, and
// advancement to the next activity.
type QuestService struct {
	store *docstore.Store
	log   zerolog.Logger
}

func NewQuestService(store *docstore.Store, log zerolog.Logger) *QuestService {
	return &QuestService{store: store, log: log}
}

// Rollover settles quest state for a user: completed activities get a
// cooldown stamped, and activities whose cooldown has elapsed advance to the
// next in the cycle. The pass is idempotent — re-running it at the same
// instant changes nothing, and a quest advances at most once per cooldown.
//
// When ownedPets is non-nil, quest entries for pets not in the list are
// pruned and missing entries are initialized. A nil ownedPets means the
// caller has no authoritative pet list; existing entries are settled as-is.
func (q *QuestService) Rollover(ctx context.Context, userID string, ownedPets []string) error {
	return q.RolloverAt(ctx, userID, ownedPets, time.Now())
}

// RolloverAt is Rollover with an injected clock.
func (q *QuestService) RolloverAt(ctx context.Context, userID string, ownedPets []string, now time.Time) error {
	if userID == "" {
		return domain.ErrEmptyUserID
	}

	var completions, advances []string
	err := q.store.RunTransaction(ctx, func(tx *docstore.Txn) error {
		completions, advances = nil, nil
		snap, err := tx.Get(QuestStateCollection, userID)
		if err != nil {
			return err
		}
		qs, err := DecodeQuestState(snap, now)
		if err != nil {
			return err
		}

		pets := ownedPets
		if pets == nil {
			pets = make([]string, 0, len(qs.Pets))
			for pet := range qs.Pets {
				pets = append(pets, pet)
			}
			sort.Strings(pets)
		}

		changed := false
		for _, pet := range pets {
			pq := qs.Pets[pet]
			if pq == nil {
				qs.Pets[pet] = domain.NewPetQuest()
				changed = true
				continue
			}
			active := pq.ActiveActivity()
			progress := pq.ActiveProgress()
			if progress < domain.QuestTarget {
				continue
			}
			switch {
			case pq.CooldownUntil == nil:
				completedAt := now
				cooldownUntil := now.Add(domain.Cooldown)
				pq.CompletedAt = &completedAt
				pq.CooldownUntil = &cooldownUntil
				if progress > domain.QuestTarget {
					pq.Progress[active] = domain.QuestTarget
				}
				completions = append(completions, active)
				changed = true
			case !now.Before(*pq.CooldownUntil):
				delete(pq.Progress, active)
				next := domain.NextActivityIndex(pq.ActivityIndex)
				pq.ActivityIndex = next
				pq.Progress[domain.ActivityAt(next)] = 0
				pq.CompletedAt = nil
				pq.CooldownUntil = nil
				advances = append(advances, domain.ActivityAt(next))
				changed = true
			default:
				// Cooldown still pending: no advance, but keep the active
				// counter within the target. Ingestion keeps incrementing
				// blindly during the cooldown window.
				if progress > domain.QuestTarget {
					pq.Progress[active] = domain.QuestTarget
					changed = true
				}
			}
		}

		if ownedPets != nil {
			owned := make(map[string]bool, len(ownedPets))
			for _, pet := range ownedPets {
				owned[pet] = true
			}
			for pet := range qs.Pets {
				if !owned[pet] {
					delete(qs.Pets, pet)
					changed = true
				}
			}
		}

		if !changed {
			// Nothing staged, nothing committed.
			return nil
		}
		qs.UpdatedAt = now
		return tx.SetJSON(QuestStateCollection, userID, qs)
	})
	if err != nil {
		return fmt.Errorf("rollover: %w", err)
	}

	for _, activity := range completions {
		metrics.QuestCompletions.WithLabelValues(activity).Inc()
	}
	for _, activity := range advances {
		metrics.QuestAdvances.WithLabelValues(activity).Inc()
		q.log.Info().
			Str("user", userID).
			Str("activity", activity).
			Msg("quest advanced")
	}
	return nil
}

// QuestStates returns a per-pet quest status snapshot.
func (q *QuestService) QuestStates(ctx context.Context, userID string) ([]domain.QuestStatus, error) {
	return q.QuestStatesAt(ctx, userID, time.Now())
}

// QuestStatesAt is QuestStates with an injected clock.
func (q *QuestService) QuestStatesAt(ctx context.Context, userID string, now time.Time) ([]domain.QuestStatus, error) {
	if userID == "" {
		return nil, domain.ErrEmptyUserID
	}
	snap, err := q.store.Get(ctx, QuestStateCollection, userID)
	if err != nil {
		return nil, fmt.Errorf("quest states: %w", err)
	}
	qs, err := DecodeQuestState(snap, now)
	if err != nil {
		return nil, fmt.Errorf("quest states: %w", err)
	}
	return StatusesOf(qs, now), nil
}

// StatusesOf derives the read model from a quest document, pets in sorted
// order.
func StatusesOf(qs domain.QuestState, now time.Time) []domain.QuestStatus {
	pets := make([]string, 0, len(qs.Pets))
	for pet := range qs.Pets {
		pets = append(pets, pet)
	}
	sort.Strings(pets)

	statuses := make([]domain.QuestStatus, 0, len(pets))
	for _, pet := range pets {
		pq := qs.Pets[pet]
		statuses = append(statuses, domain.QuestStatus{
			Pet:           pet,
			Activity:      pq.ActiveActivity(),
			ActivityIndex: pq.ActivityIndex,
			Progress:      pq.ActiveProgress(),
			Target:        domain.QuestTarget,
			Completed:     pq.Completed(),
			CooldownUntil: pq.CooldownUntil,
			SleepStartAt:  pq.SleepStartAt,
			SleepEndAt:    pq.SleepEndAt,
			Sleeping:      pq.Sleeping(now),
		})
	}
	return statuses
}

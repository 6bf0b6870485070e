package progression

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/storypets/storypets/internal/domain"
	"github.com/storypets/storypets/internal/infra/docstore"
	"github.com/storypets/storypets/internal/infra/metrics"
)

// ProgressService records solved questions and manages the coin balance.
type ProgressService struct {
	store *docstore.Store
	log   zerolog.Logger
}

func NewProgressService(store *docstore.Store, log zerolog.Logger) *ProgressService {
	return &ProgressService{store: store, log: log}
}

// RecordProgress credits questionsSolved questions to a pet: lifetime count,
// coins, the per-adventure bucket, and the active quest activity all advance
// in one atomic batch.
func (p *ProgressService) RecordProgress(ctx context.Context, userID, petID string, questionsSolved int64, adventureKey string) error {
	return p.RecordProgressAt(ctx, userID, petID, questionsSolved, adventureKey, time.Now())
}

// RecordProgressAt is RecordProgress with an injected clock.
//
// All counter writes are commutative increments, so concurrent recordings
// never lose questions. Quest completion, however, is predicted from the
// quest state read before the increment: under concurrency the prediction
// can fire early or not at all. The rollover scheduler's next transactional
// pass settles either way, so the prediction is only an optimization.
func (p *ProgressService) RecordProgressAt(ctx context.Context, userID, petID string, questionsSolved int64, adventureKey string, now time.Time) error {
	if err := validateIDs(userID, petID); err != nil {
		return err
	}
	if questionsSolved < 0 {
		return domain.ErrInvalidAmount
	}
	if questionsSolved == 0 {
		return nil
	}

	snap, err := p.store.Get(ctx, QuestStateCollection, userID)
	if err != nil {
		return fmt.Errorf("record progress: %w", err)
	}
	qs, err := DecodeQuestState(snap, now)
	if err != nil {
		return fmt.Errorf("record progress: %w", err)
	}

	var (
		activityIndex   int
		prior           int64
		cooldownPending bool
	)
	if pq := qs.Pets[petID]; pq != nil {
		activityIndex = pq.ActivityIndex
		prior = pq.ActiveProgress()
		cooldownPending = pq.CooldownUntil != nil
	}
	active := domain.ActivityAt(activityIndex)

	bucket := strings.TrimSpace(adventureKey)
	if bucket == "" {
		bucket = active
	}
	coins := questionsSolved * domain.CoinsPerQuestion

	userOps := docstore.DocOps{
		Collection: UserStateCollection,
		ID:         userID,
		Ops: []docstore.FieldOp{
			docstore.SetIfMissing(now, "createdAt"),
			docstore.Increment(questionsSolved, "pets", petID),
			docstore.Increment(coins, "coins"),
			docstore.Increment(questionsSolved, "petQuestions", petID, bucket),
			docstore.Set(now, "updatedAt"),
		},
	}
	questOps := docstore.DocOps{
		Collection: QuestStateCollection,
		ID:         userID,
		Ops: []docstore.FieldOp{
			docstore.SetIfMissing(now, "createdAt"),
			docstore.SetIfMissing(int64(0), "pets", petID, "activityIndex"),
			docstore.Increment(questionsSolved, "pets", petID, "progress", active),
			docstore.Set(now, "updatedAt"),
		},
	}
	if prior+questionsSolved >= domain.QuestTarget && !cooldownPending {
		questOps.Ops = append(questOps.Ops,
			docstore.Set(now, "pets", petID, "completedAt"),
			docstore.Set(now.Add(domain.Cooldown), "pets", petID, "cooldownUntil"),
		)
	}

	if err := p.store.Apply(ctx, userOps, questOps); err != nil {
		return fmt.Errorf("record progress: %w", err)
	}

	metrics.QuestionsRecorded.WithLabelValues(petID).Add(float64(questionsSolved))
	metrics.CoinsEarned.Add(float64(coins))
	p.log.Debug().
		Str("user", userID).
		Str("pet", petID).
		Str("activity", active).
		Int64("questions", questionsSolved).
		Int64("coins", coins).
		Msg("progress recorded")
	return nil
}

// DeductCoins spends amount coins from the user's balance. When the balance
// is insufficient the balance is clamped to zero and ok is false.
func (p *ProgressService) DeductCoins(ctx context.Context, userID string, amount int64) (bool, int64, error) {
	return p.DeductCoinsAt(ctx, userID, amount, time.Now())
}

// DeductCoinsAt is DeductCoins with an injected clock. The read-check-write
// runs inside an optimistic transaction so concurrent earns are never lost.
func (p *ProgressService) DeductCoinsAt(ctx context.Context, userID string, amount int64, now time.Time) (bool, int64, error) {
	if userID == "" {
		return false, 0, domain.ErrEmptyUserID
	}
	if amount <= 0 {
		return false, 0, domain.ErrInvalidAmount
	}

	var (
		ok        bool
		remaining int64
	)
	err := p.store.RunTransaction(ctx, func(tx *docstore.Txn) error {
		ok = false
		snap, err := tx.Get(UserStateCollection, userID)
		if err != nil {
			return err
		}
		us, err := DecodeUserState(snap, now)
		if err != nil {
			return err
		}
		if us.Coins >= amount {
			us.Coins -= amount
			ok = true
		} else {
			us.Coins = 0
		}
		remaining = us.Coins
		us.UpdatedAt = now
		return tx.SetJSON(UserStateCollection, userID, us)
	})
	if err != nil {
		return false, 0, fmt.Errorf("deduct coins: %w", err)
	}

	if ok {
		metrics.CoinsSpent.Add(float64(amount))
	} else {
		metrics.DeductionsBlocked.Inc()
		p.log.Info().
			Str("user", userID).
			Int64("amount", amount).
			Msg("coin deduction blocked: insufficient balance")
	}
	return ok, remaining, nil
}

// SetPetName stores a display name for a pet.
func (p *ProgressService) SetPetName(ctx context.Context, userID, petID, name string) error {
	if err := validateIDs(userID, petID); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrEmptyName
	}
	now := time.Now()
	ops := docstore.DocOps{
		Collection: UserStateCollection,
		ID:         userID,
		Ops: []docstore.FieldOp{
			docstore.SetIfMissing(now, "createdAt"),
			docstore.Set(name, "petNames", petID),
			docstore.Set(now, "updatedAt"),
		},
	}
	if err := p.store.Apply(ctx, ops); err != nil {
		return fmt.Errorf("set pet name: %w", err)
	}
	return nil
}

// PetNames returns the stored pet display names for a user.
func (p *ProgressService) PetNames(ctx context.Context, userID string) (map[string]string, error) {
	if userID == "" {
		return nil, domain.ErrEmptyUserID
	}
	snap, err := p.store.Get(ctx, UserStateCollection, userID)
	if err != nil {
		return nil, fmt.Errorf("pet names: %w", err)
	}
	us, err := DecodeUserState(snap, time.Now())
	if err != nil {
		return nil, fmt.Errorf("pet names: %w", err)
	}
	return us.PetNames, nil
}

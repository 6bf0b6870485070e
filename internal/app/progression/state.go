// Package progression implements the StoryPets progression engine: question
// ingestion, coin accounting, the quest rollover scheduler, login streaks,
// and pet sleep windows — all over the per-user document store.
//
// Mutation discipline: pure counters (coins, per-pet and per-adventure
// counts, activity progress) go through atomic store increments; any write
// that decides a state transition (cooldown assignment, activity advancement,
// streak increment) goes through an optimistic transaction.
package progression

import (
	"fmt"
	"time"

	"github.com/storypets/storypets/internal/domain"
	"github.com/storypets/storypets/internal/infra/docstore"
)

// Root document collections, one document per user in each.
const (
	UserStateCollection  = "user_state"
	QuestStateCollection = "quest_state"
)

// DecodeUserState turns a snapshot into a typed user document,
// default-initializing when the document does not exist yet. A missing
// document is never surfaced as an error.
func DecodeUserState(snap docstore.Snapshot, now time.Time) (domain.UserState, error) {
	if !snap.Exists {
		return domain.NewUserState(now), nil
	}
	var us domain.UserState
	if err := snap.Decode(&us); err != nil {
		return us, fmt.Errorf("decode user state: %w", err)
	}
	if us.Pets == nil {
		us.Pets = map[string]int64{}
	}
	if us.PetNames == nil {
		us.PetNames = map[string]string{}
	}
	if us.PetQuestions == nil {
		us.PetQuestions = map[string]map[string]int64{}
	}
	return us, nil
}

// DecodeQuestState turns a snapshot into a typed quest document,
// default-initializing when absent.
func DecodeQuestState(snap docstore.Snapshot, now time.Time) (domain.QuestState, error) {
	if !snap.Exists {
		return domain.NewQuestState(now), nil
	}
	var qs domain.QuestState
	if err := snap.Decode(&qs); err != nil {
		return qs, fmt.Errorf("decode quest state: %w", err)
	}
	if qs.Pets == nil {
		qs.Pets = map[string]*domain.PetQuest{}
	}
	for _, pq := range qs.Pets {
		if pq.Progress == nil {
			pq.Progress = map[string]int64{}
		}
	}
	return qs, nil
}

func validateIDs(userID, petID string) error {
	if userID == "" {
		return domain.ErrEmptyUserID
	}
	if petID == "" {
		return domain.ErrEmptyPetID
	}
	return nil
}

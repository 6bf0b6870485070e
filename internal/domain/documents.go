// Package domain defines the persistent document shapes and pure rules of the
// StoryPets progression engine: per-user coins and counters, per-pet quest
// rotation, streaks, levels, and sleep windows.
package domain

import "time"

// ─── User State ─────────────────────────────────────────────────────────────

// UserState is the per-user root document holding coins, streak accounting,
// and cumulative correct-answer counters.
//
// Counter fields (Pets, PetQuestions, Coins) are only ever mutated through
// atomic store increments; cross-field decisions (streak) go through a
// transaction.
type UserState struct {
	// Pets maps pet ID → cumulative correct answers for that pet.
	Pets map[string]int64 `json:"pets,omitempty"`

	// PetNames maps pet ID → user-assigned display name.
	PetNames map[string]string `json:"petNames,omitempty"`

	// PetQuestions maps pet ID → adventure key → correct answers for that
	// adventure. The per-pet sum need not equal Pets[pet]: callers may omit
	// the adventure key, in which case the active activity name is used.
	PetQuestions map[string]map[string]int64 `json:"petQuestions,omitempty"`

	Coins  int64 `json:"coins"`
	Streak int   `json:"streak"`

	// LastLoginAt is the previous sign-in time, read by the streak
	// transaction before being overwritten with the current sign-in.
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`

	// LastStreakIncrementAt guards the streak against double increments
	// within a rolling 24-hour window.
	LastStreakIncrementAt *time.Time `json:"lastStreakIncrementAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUserState returns a default-initialized user document.
// Documents are created lazily on first read-or-write, never pre-provisioned.
func NewUserState(now time.Time) UserState {
	return UserState{
		Pets:         map[string]int64{},
		PetNames:     map[string]string{},
		PetQuestions: map[string]map[string]int64{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ─── Quest State ────────────────────────────────────────────────────────────

// QuestState is the per-user root document holding one quest sub-record per
// owned pet.
type QuestState struct {
	Pets map[string]*PetQuest `json:"pets,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewQuestState returns a default-initialized quest document.
func NewQuestState(now time.Time) QuestState {
	return QuestState{
		Pets:      map[string]*PetQuest{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PetQuest is one pet's rotation state. Only the key for the current activity
// is live in Progress; rollover deletes the old key when the pet advances.
type PetQuest struct {
	ActivityIndex int              `json:"activityIndex"`
	Progress      map[string]int64 `json:"progress,omitempty"`

	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	CooldownUntil *time.Time `json:"cooldownUntil,omitempty"`

	SleepStartAt *time.Time `json:"sleepStartAt,omitempty"`
	SleepEndAt   *time.Time `json:"sleepEndAt,omitempty"`
}

// NewPetQuest returns a fresh sub-record at the start of the sequence.
func NewPetQuest() *PetQuest {
	return &PetQuest{
		ActivityIndex: 0,
		Progress:      map[string]int64{ActivityAt(0): 0},
	}
}

// ActiveActivity returns the activity name the pet is currently working on.
func (p *PetQuest) ActiveActivity() string {
	return ActivityAt(p.ActivityIndex)
}

// ActiveProgress returns the progress counter for the current activity.
func (p *PetQuest) ActiveProgress() int64 {
	if p.Progress == nil {
		return 0
	}
	return p.Progress[p.ActiveActivity()]
}

// Completed reports whether the current activity has been detected complete.
func (p *PetQuest) Completed() bool {
	return p.CompletedAt != nil
}

// Sleeping reports whether the pet is inside its sleep window at the given
// time. Expiry is derived at read time; the stored fields are never rewritten
// when the window lapses.
func (p *PetQuest) Sleeping(now time.Time) bool {
	if p.SleepStartAt == nil || p.SleepEndAt == nil {
		return false
	}
	return !now.Before(*p.SleepStartAt) && now.Before(*p.SleepEndAt)
}

// ─── Derived read models ────────────────────────────────────────────────────

// PetOverview is the derived per-pet summary served to the UI.
type PetOverview struct {
	TotalCorrect  int64 `json:"totalCorrect"`
	Level         int   `json:"level"`
	NextThreshold int64 `json:"nextThreshold"`
	ToNext        int64 `json:"toNext"`
}

// Overview is the coalesced read-only summary of a user's progression.
type Overview struct {
	Coins  int64                  `json:"coins"`
	Streak int                    `json:"streak"`
	Pets   map[string]PetOverview `json:"pets"`
}

// QuestStatus is the derived per-pet quest view served to the UI.
type QuestStatus struct {
	Pet           string     `json:"pet"`
	Activity      string     `json:"activity"`
	ActivityIndex int        `json:"activityIndex"`
	Progress      int64      `json:"progress"`
	Target        int64      `json:"target"`
	Completed     bool       `json:"completed"`
	CooldownUntil *time.Time `json:"cooldownUntil,omitempty"`
	SleepStartAt  *time.Time `json:"sleepStartAt,omitempty"`
	SleepEndAt    *time.Time `json:"sleepEndAt,omitempty"`
	Sleeping      bool       `json:"sleeping"`
}

package domain

import "time"

// Tuning constants for the quest rotation.
const (
	// QuestTarget is the progress needed to complete the active activity.
	QuestTarget int64 = 5

	// Cooldown is how long a completed activity rests before rollover
	// advances the pet to the next one.
	Cooldown = 8 * time.Hour

	// CoinsPerQuestion is the coin credit per correctly answered question.
	CoinsPerQuestion int64 = 10

	// SleepDuration is the default length of a pet's sleep window.
	SleepDuration = 8 * time.Hour
)

// ActivitySequence is the fixed, ordered, cyclic list of quest activities
// every pet rotates through. Order matters: rollover advances to the next
// entry and wraps at the end.
var ActivitySequence = []string{
	"house",
	"friend",
	"picnic",
	"garden",
	"treasure",
	"star",
}

// ActivityAt maps a cyclic index to its activity name.
// Any non-negative index is valid; it is reduced modulo the sequence length.
func ActivityAt(index int) string {
	if index < 0 {
		index = 0
	}
	return ActivitySequence[index%len(ActivitySequence)]
}

// NextActivityIndex returns the index following the given one, wrapped.
func NextActivityIndex(index int) int {
	if index < 0 {
		index = 0
	}
	return (index + 1) % len(ActivitySequence)
}

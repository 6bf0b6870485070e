package domain

// levelThresholds[i] is the cumulative correct-answer count required to reach
// level i+1. Level 1 starts at 0; level 5 is the cap.
var levelThresholds = []int64{0, 5, 12, 20, 30}

// MaxLevel is the highest reachable pet level.
var MaxLevel = len(levelThresholds)

// LevelForCorrect returns the pet level (1–5) for a cumulative
// correct-answer count.
func LevelForCorrect(totalCorrect int64) int {
	level := 1
	for i := 1; i < len(levelThresholds); i++ {
		if totalCorrect >= levelThresholds[i] {
			level = i + 1
		}
	}
	return level
}

// NextThreshold returns the correct-answer count at which the next level is
// reached, or 0 if the pet is already at the cap.
func NextThreshold(totalCorrect int64) int64 {
	level := LevelForCorrect(totalCorrect)
	if level >= MaxLevel {
		return 0
	}
	return levelThresholds[level]
}

// ToNext returns how many more correct answers are needed for the next
// level, or 0 at the cap.
func ToNext(totalCorrect int64) int64 {
	next := NextThreshold(totalCorrect)
	if next == 0 {
		return 0
	}
	remaining := next - totalCorrect
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PetOverviewFor derives the full per-pet summary from a counter value.
func PetOverviewFor(totalCorrect int64) PetOverview {
	return PetOverview{
		TotalCorrect:  totalCorrect,
		Level:         LevelForCorrect(totalCorrect),
		NextThreshold: NextThreshold(totalCorrect),
		ToNext:        ToNext(totalCorrect),
	}
}

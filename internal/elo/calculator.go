package elo

import (
	"math"

	"rallio-queue/internal/models"
)

const (
	// DefaultKFactor governs how far a single result moves a rating.
	DefaultKFactor = 32.0

	// MaxSkillLevelJump caps how many tiers a single result may move a
	// player's skill level. Larger computed jumps are suppressed.
	MaxSkillLevelJump = 2
)

type Calculator struct {
	kFactor float64
}

func NewCalculator() *Calculator {
	return &Calculator{kFactor: DefaultKFactor}
}

// NewCalculatorWithK creates a calculator with a custom K-factor.
func NewCalculatorWithK(k float64) *Calculator {
	if k <= 0 {
		k = DefaultKFactor
	}
	return &Calculator{kFactor: k}
}

// NewRating calculates the player's rating after one decided result against an
// opposing side averaging avgOpponent.
// E = 1 / (1 + 10^((avgOpponent - current) / 400)), ΔR = K × (S - E)
// Draws never reach this function; the completion path skips rating updates
// entirely for draws.
func (c *Calculator) NewRating(current, avgOpponent float64, won bool) float64 {
	expected := 1.0 / (1.0 + math.Pow(10, (avgOpponent-current)/400.0))
	actual := 0.0
	if won {
		actual = 1.0
	}
	return math.Round(current + c.kFactor*(actual-expected))
}

// SkillLevelFromRating maps a rating onto the 1-10 skill ladder.
func SkillLevelFromRating(rating float64) int {
	switch {
	case rating < 1200:
		return 1
	case rating < 1300:
		return 2
	case rating < 1400:
		return 3
	case rating < 1500:
		return 4
	case rating < 1600:
		return 5
	case rating < 1700:
		return 6
	case rating < 1800:
		return 7
	case rating < 1900:
		return 8
	case rating < 2000:
		return 9
	default:
		return 10
	}
}

// RatingForSkillLevel seeds a rating for a self-declared skill level,
// placed at the middle of the level's band.
func RatingForSkillLevel(level int) float64 {
	if level < models.MinSkillLevel {
		level = models.MinSkillLevel
	}
	if level > models.MaxSkillLevel {
		level = models.MaxSkillLevel
	}
	return 1050.0 + 100.0*float64(level)
}

// ClampSkillLevel applies the tier guard: the computed level is accepted only
// when it is within MaxSkillLevelJump of the stored level. Returns the level
// to store and whether the computed value was applied.
func ClampSkillLevel(stored, computed int) (int, bool) {
	diff := computed - stored
	if diff < 0 {
		diff = -diff
	}
	if diff > MaxSkillLevelJump {
		return stored, false
	}
	return computed, true
}

// AverageRating is the mean rating of an opposing side. Players without a
// rating record count as models.DefaultRating.
func AverageRating(ratings []float64) float64 {
	if len(ratings) == 0 {
		return models.DefaultRating
	}
	sum := 0.0
	for _, r := range ratings {
		sum += r
	}
	return sum / float64(len(ratings))
}

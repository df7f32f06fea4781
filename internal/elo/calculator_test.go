package elo

import (
	"math"
	"testing"
)

func TestNewRatingEqualOpponents(t *testing.T) {
	c := NewCalculator()

	win := c.NewRating(1500, 1500, true)
	if win != 1516 {
		t.Errorf("win vs equal opponent: got %v, want 1516", win)
	}

	loss := c.NewRating(1500, 1500, false)
	if loss != 1484 {
		t.Errorf("loss vs equal opponent: got %v, want 1484", loss)
	}
}

func TestNewRatingUpsets(t *testing.T) {
	c := NewCalculator()

	tests := []struct {
		name        string
		current     float64
		avgOpponent float64
		won         bool
		want        float64
	}{
		{"underdog win gains big", 1400, 1600, true, 1424},
		{"favorite win gains little", 1600, 1400, true, 1608},
		{"underdog loss costs little", 1400, 1600, false, 1392},
		{"favorite loss costs big", 1600, 1400, false, 1576},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.NewRating(tt.current, tt.avgOpponent, tt.won)
			if got != tt.want {
				t.Errorf("NewRating(%v, %v, %v) = %v, want %v",
					tt.current, tt.avgOpponent, tt.won, got, tt.want)
			}
		})
	}
}

func TestNewRatingIsRounded(t *testing.T) {
	c := NewCalculator()
	got := c.NewRating(1550, 1500, true)
	if got != math.Round(got) {
		t.Errorf("rating %v not rounded to an integer value", got)
	}
}

func TestNewRatingZeroSum(t *testing.T) {
	c := NewCalculator()
	winnerGain := c.NewRating(1500, 1700, true) - 1500
	loserLoss := 1700 - c.NewRating(1700, 1500, false)
	if winnerGain != loserLoss {
		t.Errorf("gain %v and loss %v not symmetric for mirrored pairing", winnerGain, loserLoss)
	}
}

func TestSkillLevelFromRating(t *testing.T) {
	tests := []struct {
		rating float64
		want   int
	}{
		{800, 1},
		{1199, 1},
		{1200, 2},
		{1299, 2},
		{1300, 3},
		{1450, 4},
		{1500, 5},
		{1599, 5},
		{1600, 6},
		{1750, 7},
		{1850, 8},
		{1999, 9},
		{2000, 10},
		{2400, 10},
	}

	for _, tt := range tests {
		if got := SkillLevelFromRating(tt.rating); got != tt.want {
			t.Errorf("SkillLevelFromRating(%v) = %d, want %d", tt.rating, got, tt.want)
		}
	}
}

func TestRatingForSkillLevel(t *testing.T) {
	for level := 1; level <= 10; level++ {
		rating := RatingForSkillLevel(level)
		if got := SkillLevelFromRating(rating); got != level {
			t.Errorf("seed rating %v for level %d maps back to level %d", rating, level, got)
		}
	}

	if got := RatingForSkillLevel(0); got != 1150 {
		t.Errorf("level below range: got %v, want 1150", got)
	}
	if got := RatingForSkillLevel(15); got != 2050 {
		t.Errorf("level above range: got %v, want 2050", got)
	}
}

func TestClampSkillLevel(t *testing.T) {
	tests := []struct {
		name     string
		stored   int
		computed int
		want     int
		applied  bool
	}{
		{"no change", 5, 5, 5, true},
		{"one up", 5, 6, 6, true},
		{"two down", 5, 3, 3, true},
		{"three up suppressed", 5, 8, 5, false},
		{"three down suppressed", 5, 2, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, applied := ClampSkillLevel(tt.stored, tt.computed)
			if got != tt.want || applied != tt.applied {
				t.Errorf("ClampSkillLevel(%d, %d) = (%d, %v), want (%d, %v)",
					tt.stored, tt.computed, got, applied, tt.want, tt.applied)
			}
		})
	}
}

func TestAverageRating(t *testing.T) {
	if got := AverageRating(nil); got != 1500 {
		t.Errorf("empty side: got %v, want default 1500", got)
	}
	if got := AverageRating([]float64{1400, 1600}); got != 1500 {
		t.Errorf("pair average: got %v, want 1500", got)
	}
}

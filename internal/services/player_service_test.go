package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"rallio-queue/internal/elo"
)

func TestDeclareSkillLevelSeedsNewPlayer(t *testing.T) {
	f := newFixture()

	rec, err := f.players.DeclareSkillLevel(context.Background(), "alice", 8)
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if rec.SkillLevel != 8 {
		t.Errorf("skill level = %d, want 8", rec.SkillLevel)
	}
	if rec.Rating != 1850 {
		t.Errorf("seed rating = %.0f, want 1850", rec.Rating)
	}
	if got := elo.SkillLevelFromRating(rec.Rating); got != 8 {
		t.Errorf("seed rating maps back to level %d, want 8", got)
	}
	if rec.SkillLevelUpdatedAt != nil {
		t.Error("seeding must not start the change cooldown")
	}
}

func TestDeclareSkillLevelAdjustsWithinGuard(t *testing.T) {
	f := newFixture()
	f.setPlayer("bob", 1620, 6)

	rec, err := f.players.DeclareSkillLevel(context.Background(), "bob", 4)
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if rec.SkillLevel != 4 {
		t.Errorf("skill level = %d, want 4", rec.SkillLevel)
	}
	if rec.Rating != 1620 {
		t.Errorf("earned rating moved to %.0f", rec.Rating)
	}
	if rec.SkillLevelUpdatedAt == nil {
		t.Error("change time not stamped")
	}
}

func TestDeclareSkillLevelRejectsBigJump(t *testing.T) {
	f := newFixture()
	f.setPlayer("bob", 1620, 6)

	if _, err := f.players.DeclareSkillLevel(context.Background(), "bob", 9); !errors.Is(err, ErrSkillChangeTooLarge) {
		t.Errorf("err = %v, want ErrSkillChangeTooLarge", err)
	}
}

func TestDeclareSkillLevelCooldown(t *testing.T) {
	f := newFixture()
	f.setPlayer("carol", 1500, 5)
	if _, err := f.store.SetSkillLevel(context.Background(), "carol", 5, time.Now().Add(-24*time.Hour)); err != nil {
		t.Fatalf("seed change time: %v", err)
	}

	_, err := f.players.DeclareSkillLevel(context.Background(), "carol", 6)
	var cooldown *SkillChangeCooldownError
	if !errors.As(err, &cooldown) {
		t.Fatalf("err = %v, want SkillChangeCooldownError", err)
	}
	if cooldown.Remaining <= 0 || cooldown.Remaining > SkillChangeCooldown {
		t.Errorf("remaining = %v, want within the cooldown window", cooldown.Remaining)
	}

	// Past the window the change is accepted.
	if _, err := f.store.SetSkillLevel(context.Background(), "carol", 5, time.Now().Add(-31*24*time.Hour)); err != nil {
		t.Fatalf("age change time: %v", err)
	}
	rec, err := f.players.DeclareSkillLevel(context.Background(), "carol", 6)
	if err != nil {
		t.Fatalf("declare after cooldown: %v", err)
	}
	if rec.SkillLevel != 6 {
		t.Errorf("skill level = %d, want 6", rec.SkillLevel)
	}
}

func TestDeclareSkillLevelRange(t *testing.T) {
	f := newFixture()
	for _, level := range []int{0, 11} {
		if _, err := f.players.DeclareSkillLevel(context.Background(), "dave", level); err == nil {
			t.Errorf("level %d accepted, want error", level)
		}
	}
}

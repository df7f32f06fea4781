package services

import (
	"errors"
	"fmt"
	"time"

	"rallio-queue/internal/models"
	"rallio-queue/internal/teams"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("not allowed to perform this action")

	// ErrAlreadyQueued: the player already has an active row in the session.
	ErrAlreadyQueued = errors.New("already in the queue for this session")

	// ErrSessionClosed: the session is not accepting players (paused/closed).
	ErrSessionClosed = errors.New("session is not accepting players")

	// ErrConcurrentModification: a conditional write found the document in a
	// different state than the one read. The caller should retry or re-fetch.
	ErrConcurrentModification = errors.New("state changed concurrently, retry")

	// ErrPlayerInMatch: the participant is in an active match; complete or
	// cancel it before removing them.
	ErrPlayerInMatch = errors.New("cannot remove a player from an active match, complete or cancel the match first")

	// ErrSkillChangeTooLarge: a declared skill level beyond the adjustment
	// limit for an existing player.
	ErrSkillChangeTooLarge = errors.New("skill level can only be adjusted by two levels at a time")

	// ErrInsufficientPlayers re-exports the balancer error so callers only
	// need this package for error matching.
	ErrInsufficientPlayers = teams.ErrInsufficientPlayers
)

// CooldownError blocks a rejoin attempt within the cooldown window.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	secs := int(e.Remaining.Seconds())
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("you can rejoin in %d seconds", secs)
}

// SkillChangeCooldownError blocks re-declaring a skill level too soon after
// the last change.
type SkillChangeCooldownError struct {
	Remaining time.Duration
}

func (e *SkillChangeCooldownError) Error() string {
	days := int(e.Remaining.Hours() / 24)
	if days < 1 {
		days = 1
	}
	return fmt.Sprintf("skill level can be changed again in %d day(s)", days)
}

// PaymentRequiredError blocks leaving with an outstanding balance.
type PaymentRequiredError struct {
	AmountOwed  float64
	GamesPlayed int
}

func (e *PaymentRequiredError) Error() string {
	return fmt.Sprintf("outstanding balance of %.2f for %d game(s) must be settled before leaving", e.AmountOwed, e.GamesPlayed)
}

// InvalidTransitionError rejects a match operation in the wrong state.
type InvalidTransitionError struct {
	Status models.MatchStatus
	Action string
}

func (e *InvalidTransitionError) Error() string {
	switch {
	case e.Status == models.MatchCompleted:
		return fmt.Sprintf("cannot %s: match is already completed", e.Action)
	case e.Status == models.MatchCancelled:
		return fmt.Sprintf("cannot %s: match was cancelled", e.Action)
	case e.Status == models.MatchScheduled && e.Action == "record score":
		return fmt.Sprintf("cannot %s: match has not started", e.Action)
	default:
		return fmt.Sprintf("cannot %s a match in state %s", e.Action, e.Status)
	}
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// DefaultRating seeds players with no rating history.
	DefaultRating = 1500.0

	// DefaultSkillLevel is assumed when a player has never declared or earned one.
	DefaultSkillLevel = 5

	MinSkillLevel = 1
	MaxSkillLevel = 10
)

// PlayerRating is a player's cross-session competitive record.
type PlayerRating struct {
	ID                  primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID              string             `json:"userId" bson:"userId"`
	Rating              float64            `json:"rating" bson:"rating"`
	SkillLevel          int                `json:"skillLevel" bson:"skillLevel"`
	GamesPlayed         int                `json:"gamesPlayed" bson:"gamesPlayed"`
	Wins                int                `json:"wins" bson:"wins"`
	Losses              int                `json:"losses" bson:"losses"`
	Draws               int                `json:"draws" bson:"draws"`
	SkillLevelUpdatedAt *time.Time         `json:"skillLevelUpdatedAt,omitempty" bson:"skillLevelUpdatedAt,omitempty"`
	CreatedAt           time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt" bson:"updatedAt"`
}

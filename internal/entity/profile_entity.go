package entity

import "github.com/google/uuid"

type UserProfile struct {
	UserId            uuid.UUID
	Role              string
	Function          string
	Challenges        []string
	PersonalityScores map[string]float64
}

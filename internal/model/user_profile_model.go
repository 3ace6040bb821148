package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type UserProfile struct {
	UserId            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Role              string         `gorm:"type:text"`
	Function          string         `gorm:"type:text"`
	Challenges        datatypes.JSON // []string
	PersonalityScores datatypes.JSON // map[string]float64
	CreatedAt         time.Time      `gorm:"autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}

package mapper

import (
	"encoding/json"
	"fmt"

	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/model"

	"gorm.io/datatypes"
)

type ProfileMapper struct{}

func NewProfileMapper() *ProfileMapper {
	return &ProfileMapper{}
}

func (m *ProfileMapper) ToEntity(p *model.UserProfile) (*entity.UserProfile, error) {
	if p == nil {
		return nil, nil
	}

	profile := &entity.UserProfile{
		UserId:            p.UserId,
		Role:              p.Role,
		Function:          p.Function,
		Challenges:        []string{},
		PersonalityScores: map[string]float64{},
	}
	if len(p.Challenges) > 0 {
		if err := json.Unmarshal(p.Challenges, &profile.Challenges); err != nil {
			return nil, fmt.Errorf("decode challenges of profile %s: %w", p.UserId, err)
		}
	}
	if len(p.PersonalityScores) > 0 {
		if err := json.Unmarshal(p.PersonalityScores, &profile.PersonalityScores); err != nil {
			return nil, fmt.Errorf("decode personality scores of profile %s: %w", p.UserId, err)
		}
	}
	return profile, nil
}

func (m *ProfileMapper) ToModel(p *entity.UserProfile) (*model.UserProfile, error) {
	if p == nil {
		return nil, nil
	}

	challenges, err := json.Marshal(p.Challenges)
	if err != nil {
		return nil, err
	}
	scores, err := json.Marshal(p.PersonalityScores)
	if err != nil {
		return nil, err
	}

	return &model.UserProfile{
		UserId:            p.UserId,
		Role:              p.Role,
		Function:          p.Function,
		Challenges:        datatypes.JSON(challenges),
		PersonalityScores: datatypes.JSON(scores),
	}, nil
}

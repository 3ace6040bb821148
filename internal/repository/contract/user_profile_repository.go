package contract

import (
	"context"

	"coaching-rag-be/internal/entity"

	"github.com/google/uuid"
)

type UserProfileRepository interface {
	FindByUserId(ctx context.Context, userId uuid.UUID) (*entity.UserProfile, error)
	Save(ctx context.Context, profile *entity.UserProfile) error
}

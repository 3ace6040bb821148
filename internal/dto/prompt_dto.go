package dto

import "github.com/google/uuid"

type PersonalizeRequest struct {
	// UserId defaults to the caller and must match it otherwise.
	UserId *uuid.UUID `json:"userId,omitempty"`
	Count  int        `json:"count" validate:"required,min=1,max=20"`
}

type UsageDTO struct {
	TokensUsed int `json:"tokensUsed"`
}

type PersonalizeResponse struct {
	Prompts []string `json:"prompts"`
	Usage   UsageDTO `json:"usage"`
}

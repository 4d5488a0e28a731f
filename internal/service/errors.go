package service

import (
	"errors"

	"github.com/digkill/InteriorAI/internal/prompt"
)

var (
	ErrCreditsRequired    = errors.New("no credits left, buy a plan to keep generating")
	ErrCreditsExhausted   = errors.New("credits exhausted")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrGenerationNotFound = errors.New("generation not found")
	ErrPlanNotFound       = errors.New("plan not found")
	ErrInvalidImage       = errors.New("invalid image")
	ErrInvalidChoice      = errors.New("invalid onboarding choice")
	ErrUnknownContentKey  = errors.New("unknown content key")

	ErrInvalidRoomType = prompt.ErrInvalidRoomType
	ErrUnknownStyle    = prompt.ErrUnknownStyle
)

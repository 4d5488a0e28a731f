package models

import "time"

type GenerationStatus string

const (
	GenerationProcessing GenerationStatus = "processing"
	GenerationSucceeded  GenerationStatus = "succeeded"
	GenerationFailed     GenerationStatus = "failed"
)

// OnboardingState is the two-state welcome flow of a profile.
type OnboardingState string

const (
	OnboardingPending   OnboardingState = "pending"
	OnboardingCompleted OnboardingState = "completed"
)

type Profile struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	DisplayName         string    `json:"display_name"`
	AvatarURL           string    `json:"avatar_url"`
	Credits             int       `json:"credits"`
	HasPurchased        bool      `json:"has_purchased"`
	Unlimited           bool      `json:"unlimited"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Onboarding derives the explicit state from the stored flag.
func (p *Profile) Onboarding() OnboardingState {
	if p.OnboardingCompleted {
		return OnboardingCompleted
	}
	return OnboardingPending
}

type Generation struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	RoomType       string           `json:"room_type"`
	StyleID        string           `json:"style_id"`
	StylePrompt    string           `json:"style_prompt"`
	CustomPrompt   string           `json:"custom_prompt,omitempty"`
	Prompt         string           `json:"prompt"`
	NegativePrompt string           `json:"negative_prompt"`
	InputURL       string           `json:"input_url"`
	OutputURLs     []string         `json:"output_urls"`
	Status         GenerationStatus `json:"status"`
	Error          string           `json:"error,omitempty"`
	PredictionID   string           `json:"prediction_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

type Plan struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Currency        string    `json:"currency"`
	PriceMinorUnits int       `json:"price_minor_units"`
	Credits         int       `json:"credits"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Purchase struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	PlanID    *int64    `json:"plan_id,omitempty"`
	Provider  string    `json:"provider"`
	Reference string    `json:"reference"`
	Currency  string    `json:"currency"`
	Amount    int       `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type SiteContent struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

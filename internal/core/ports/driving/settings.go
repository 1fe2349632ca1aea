package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// ProviderSettingsInput is the input for one provider override.
// An empty APIKey keeps the stored key.
type ProviderSettingsInput struct {
	Provider domain.AIProvider `json:"provider"`
	Model    string            `json:"model"`
	APIKey   string            `json:"api_key,omitempty"`
	BaseURL  string            `json:"base_url,omitempty"`
}

// UpdateSettingsRequest represents a request to update a team's overrides.
// Nil fields are left unchanged.
type UpdateSettingsRequest struct {
	Embedding      *ProviderSettingsInput `json:"embedding,omitempty"`
	Chat           *ProviderSettingsInput `json:"chat,omitempty"`
	ChunkSize      *int                   `json:"chunk_size,omitempty"`
	ChunkOverlap   *int                   `json:"chunk_overlap,omitempty"`
	RetrievalK     *int                   `json:"retrieval_k,omitempty"`
	ScoreThreshold *float64               `json:"score_threshold,omitempty"`
}

// SettingsView is the client-facing view of a team's settings.
// API keys are reported only as present or absent.
type SettingsView struct {
	Overrides domain.TeamSettings      `json:"overrides"`
	Effective domain.EffectiveSettings `json:"effective"`

	EmbeddingKeySet bool `json:"embedding_key_set"`
	ChatKeySet      bool `json:"chat_key_set"`
}

// SettingsService resolves per-team configuration.
type SettingsService interface {
	// Overrides returns the team's stored overrides. It never fails: with no
	// team, no stored row, or an unavailable store it returns nil.
	Overrides(ctx context.Context, teamID string) *domain.TeamSettings

	// Resolve layers the team's overrides on the process defaults.
	Resolve(ctx context.Context, teamID string) domain.EffectiveSettings

	// Get returns the team's settings for display (admin only)
	Get(ctx context.Context, teamID string) (*SettingsView, error)

	// Update changes the team's overrides (admin only)
	Update(ctx context.Context, teamID string, req UpdateSettingsRequest) (*SettingsView, error)
}

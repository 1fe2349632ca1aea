package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// SettingsStore persists per-team overrides.
type SettingsStore interface {
	// GetTeamSettings returns the team's overrides, or nil, nil if the team
	// has none.
	GetTeamSettings(ctx context.Context, teamID string) (*domain.TeamSettings, error)

	// SaveTeamSettings creates or replaces the team's overrides.
	SaveTeamSettings(ctx context.Context, settings *domain.TeamSettings) error
}

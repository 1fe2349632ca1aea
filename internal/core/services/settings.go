package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure settingsService implements SettingsService
var _ driving.SettingsService = (*settingsService)(nil)

// settingsService implements the SettingsService interface
type settingsService struct {
	store    driven.SettingsStore
	defaults domain.EffectiveSettings
	logger   *slog.Logger
}

// SettingsServiceConfig holds configuration for the settings service.
type SettingsServiceConfig struct {
	Store    driven.SettingsStore
	Defaults domain.EffectiveSettings // Process defaults under team overrides
	Logger   *slog.Logger
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(cfg SettingsServiceConfig) driving.SettingsService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &settingsService{
		store:    cfg.Store,
		defaults: cfg.Defaults,
		logger:   logger,
	}
}

// Overrides returns the team's stored overrides, degrading to none on any
// failure so callers always fall back to defaults.
func (s *settingsService) Overrides(ctx context.Context, teamID string) *domain.TeamSettings {
	if teamID == "" || s.store == nil {
		return nil
	}
	settings, err := s.store.GetTeamSettings(ctx, teamID)
	if err != nil {
		s.logger.Warn("failed to load team settings, using defaults",
			"team_id", teamID,
			"error", err,
		)
		return nil
	}
	return settings
}

// Resolve layers the team's overrides on the process defaults
func (s *settingsService) Resolve(ctx context.Context, teamID string) domain.EffectiveSettings {
	return s.defaults.Apply(s.Overrides(ctx, teamID))
}

// Get returns the team's settings for display
func (s *settingsService) Get(ctx context.Context, teamID string) (*driving.SettingsView, error) {
	if teamID == "" {
		return nil, fmt.Errorf("%w: team is required", domain.ErrInvalidInput)
	}
	settings, err := s.store.GetTeamSettings(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = &domain.TeamSettings{TeamID: teamID}
	}
	return s.view(settings), nil
}

// Update changes the team's overrides
func (s *settingsService) Update(ctx context.Context, teamID string, req driving.UpdateSettingsRequest) (*driving.SettingsView, error) {
	if teamID == "" {
		return nil, fmt.Errorf("%w: team is required", domain.ErrInvalidInput)
	}
	settings, err := s.store.GetTeamSettings(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = &domain.TeamSettings{TeamID: teamID}
	}

	// Apply updates
	if req.Embedding != nil {
		settings.Embedding = applyProviderInput(settings.Embedding, *req.Embedding)
	}
	if req.Chat != nil {
		settings.Chat = applyProviderInput(settings.Chat, *req.Chat)
	}
	if req.ChunkSize != nil {
		settings.ChunkSize = *req.ChunkSize
	}
	if req.ChunkOverlap != nil {
		settings.ChunkOverlap = *req.ChunkOverlap
	}
	if req.RetrievalK != nil {
		settings.RetrievalK = *req.RetrievalK
	}
	if req.ScoreThreshold != nil {
		threshold := *req.ScoreThreshold
		settings.ScoreThreshold = &threshold
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	settings.UpdatedAt = time.Now()

	if err := s.store.SaveTeamSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("save team settings: %w", err)
	}

	s.logger.Info("team settings updated", "team_id", teamID)
	return s.view(settings), nil
}

func (s *settingsService) view(settings *domain.TeamSettings) *driving.SettingsView {
	return &driving.SettingsView{
		Overrides:       *settings,
		Effective:       s.defaults.Apply(settings),
		EmbeddingKeySet: settings.Embedding.APIKey != "",
		ChatKeySet:      settings.Chat.APIKey != "",
	}
}

// applyProviderInput replaces a provider override. An empty key keeps the
// stored one so clients never have to echo secrets back.
func applyProviderInput(current domain.ProviderSettings, in driving.ProviderSettingsInput) domain.ProviderSettings {
	next := domain.ProviderSettings{
		Provider: in.Provider,
		Model:    in.Model,
		APIKey:   in.APIKey,
		BaseURL:  in.BaseURL,
	}
	if next.APIKey == "" {
		next.APIKey = current.APIKey
	}
	return next
}

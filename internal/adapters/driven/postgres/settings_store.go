package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SettingsStore = (*SettingsStore)(nil)

// ErrSecretsDisabled is returned when overrides carry API keys but no
// encryption secret is configured.
var ErrSecretsDisabled = errors.New("settings encryption secret not configured")

// providerSecrets is the sealed part of a team's overrides
type providerSecrets struct {
	EmbeddingAPIKey string `json:"embedding_api_key,omitempty"`
	ChatAPIKey      string `json:"chat_api_key,omitempty"`
}

func (p providerSecrets) isEmpty() bool {
	return p.EmbeddingAPIKey == "" && p.ChatAPIKey == ""
}

// SettingsStore persists team overrides in PostgreSQL. API keys never reach
// the JSON column: they are sealed into their own column with the SecretBox.
type SettingsStore struct {
	db  *DB
	box *SecretBox
}

// NewSettingsStore creates a new SettingsStore. A nil box disables storing
// API keys.
func NewSettingsStore(db *DB, box *SecretBox) *SettingsStore {
	return &SettingsStore{db: db, box: box}
}

// GetTeamSettings retrieves a team's overrides
func (s *SettingsStore) GetTeamSettings(ctx context.Context, teamID string) (*domain.TeamSettings, error) {
	query := `
		SELECT settings, secrets, updated_at
		FROM rag_team_settings
		WHERE team_id = $1
	`

	var raw, sealed []byte
	var settings domain.TeamSettings

	err := s.db.QueryRowContext(ctx, query, teamID).Scan(&raw, &sealed, &settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get team settings %s: %w", teamID, err)
	}

	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("decode team settings %s: %w", teamID, err)
	}
	settings.TeamID = teamID

	if len(sealed) > 0 {
		if s.box == nil {
			return nil, ErrSecretsDisabled
		}
		var secrets providerSecrets
		if err := s.box.Open(sealed, &secrets); err != nil {
			return nil, fmt.Errorf("open team secrets %s: %w", teamID, err)
		}
		settings.Embedding.APIKey = secrets.EmbeddingAPIKey
		settings.Chat.APIKey = secrets.ChatAPIKey
	}

	return &settings, nil
}

// SaveTeamSettings creates or replaces a team's overrides
func (s *SettingsStore) SaveTeamSettings(ctx context.Context, settings *domain.TeamSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode team settings: %w", err)
	}

	secrets := providerSecrets{
		EmbeddingAPIKey: settings.Embedding.APIKey,
		ChatAPIKey:      settings.Chat.APIKey,
	}
	var sealed []byte
	if !secrets.isEmpty() {
		if s.box == nil {
			return ErrSecretsDisabled
		}
		if sealed, err = s.box.Seal(secrets); err != nil {
			return fmt.Errorf("seal team secrets: %w", err)
		}
	}

	query := `
		INSERT INTO rag_team_settings (team_id, settings, secrets, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id) DO UPDATE SET
			settings = EXCLUDED.settings,
			secrets = EXCLUDED.secrets,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query, settings.TeamID, raw, sealed, settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save team settings %s: %w", settings.TeamID, err)
	}
	return nil
}

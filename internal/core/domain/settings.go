package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// AIProvider identifies the AI/embedding provider
type AIProvider string

const (
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAnthropic AIProvider = "anthropic"
	AIProviderOllama    AIProvider = "ollama"
)

// RequiresAPIKey returns true if this provider requires an API key
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOllama:
		return false // Self-hosted, no API key needed
	default:
		return true
	}
}

// IsValid returns true if this is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderAnthropic, AIProviderOllama:
		return true
	default:
		return false
	}
}

// SupportsEmbeddings returns true if the provider can produce embeddings
func (p AIProvider) SupportsEmbeddings() bool {
	return p == AIProviderOpenAI || p == AIProviderOllama
}

// ProviderSettings configures one provider client (embedding or chat).
type ProviderSettings struct {
	Provider AIProvider `json:"provider,omitempty" yaml:"provider"`
	Model    string     `json:"model,omitempty" yaml:"model"`
	APIKey   string     `json:"-" yaml:"api_key"` // Never serialize to JSON
	BaseURL  string     `json:"base_url,omitempty" yaml:"base_url"`
}

// IsConfigured returns true if the settings are enough to build a client
func (p ProviderSettings) IsConfigured() bool {
	if p.Provider == "" || p.Model == "" {
		return false
	}
	if p.Provider.RequiresAPIKey() && p.APIKey == "" {
		return false
	}
	return true
}

// IsEmpty returns true if no field is set
func (p ProviderSettings) IsEmpty() bool {
	return p == ProviderSettings{}
}

// Hash identifies a provider configuration. Clients built from settings with
// the same hash are interchangeable.
func (p ProviderSettings) Hash() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%s\x00%s", p.Provider, p.Model, p.BaseURL, p.APIKey)))
	return hex.EncodeToString(sum[:])
}

// overlay returns p with every non-empty field of o applied on top.
// Once o redirects the client (provider or endpoint), the key comes from o
// alone so the process key is never sent to a team-chosen destination.
func (p ProviderSettings) overlay(o ProviderSettings) ProviderSettings {
	if o.Provider != "" || o.BaseURL != "" {
		p.APIKey = o.APIKey
	}
	if o.Provider != "" {
		p.Provider = o.Provider
	}
	if o.Model != "" {
		p.Model = o.Model
	}
	if o.APIKey != "" {
		p.APIKey = o.APIKey
	}
	if o.BaseURL != "" {
		p.BaseURL = o.BaseURL
	}
	return p
}

// TeamSettings holds a team's overrides of the process defaults.
// Zero values mean "not overridden".
type TeamSettings struct {
	TeamID         string           `json:"team_id"`
	Embedding      ProviderSettings `json:"embedding"`
	Chat           ProviderSettings `json:"chat"`
	ChunkSize      int              `json:"chunk_size,omitempty"`
	ChunkOverlap   int              `json:"chunk_overlap,omitempty"`
	RetrievalK     int              `json:"retrieval_k,omitempty"`
	ScoreThreshold *float64         `json:"score_threshold,omitempty"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsEmpty returns true if the team overrides nothing
func (t *TeamSettings) IsEmpty() bool {
	return t == nil || (t.Embedding.IsEmpty() && t.Chat.IsEmpty() &&
		t.ChunkSize == 0 && t.ChunkOverlap == 0 && t.RetrievalK == 0 && t.ScoreThreshold == nil)
}

// Validate checks the overrides are internally consistent
func (t *TeamSettings) Validate() error {
	if t.Embedding.Provider != "" && !t.Embedding.Provider.SupportsEmbeddings() {
		return fmt.Errorf("%w: %s cannot produce embeddings", ErrInvalidProvider, t.Embedding.Provider)
	}
	if t.Chat.Provider != "" && !t.Chat.Provider.IsValid() {
		return ErrInvalidProvider
	}
	if t.ChunkSize < 0 || t.ChunkOverlap < 0 || t.RetrievalK < 0 {
		return fmt.Errorf("%w: sizes must not be negative", ErrInvalidInput)
	}
	if t.ChunkSize > 0 && t.ChunkOverlap >= t.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be smaller than chunk size", ErrInvalidInput)
	}
	if t.ScoreThreshold != nil && *t.ScoreThreshold < 0 {
		return fmt.Errorf("%w: score threshold must not be negative", ErrInvalidInput)
	}
	return nil
}

// EffectiveSettings is the configuration one operation runs with:
// team overrides layered on process defaults. It is never persisted.
type EffectiveSettings struct {
	Embedding      ProviderSettings `json:"embedding" yaml:"embedding"`
	Chat           ProviderSettings `json:"chat" yaml:"chat"`
	ChunkSize      int              `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap   int              `json:"chunk_overlap" yaml:"chunk_overlap"`
	RetrievalK     int              `json:"retrieval_k" yaml:"retrieval_k"`
	ScoreThreshold float64          `json:"score_threshold" yaml:"score_threshold"`
}

// DefaultEffectiveSettings returns the built-in defaults
func DefaultEffectiveSettings() EffectiveSettings {
	return EffectiveSettings{
		Embedding: ProviderSettings{
			Provider: AIProviderOpenAI,
			Model:    "text-embedding-3-small",
		},
		Chat: ProviderSettings{
			Provider: AIProviderOpenAI,
			Model:    "gpt-4o-mini",
		},
		ChunkSize:      1000,
		ChunkOverlap:   200,
		RetrievalK:     5,
		ScoreThreshold: 0.4,
	}
}

// Apply layers team overrides on top of s. A nil or empty override set
// returns s unchanged.
func (s EffectiveSettings) Apply(o *TeamSettings) EffectiveSettings {
	if o.IsEmpty() {
		return s
	}
	s.Embedding = s.Embedding.overlay(o.Embedding)
	s.Chat = s.Chat.overlay(o.Chat)
	if o.ChunkSize > 0 {
		s.ChunkSize = o.ChunkSize
	}
	if o.ChunkOverlap > 0 {
		s.ChunkOverlap = o.ChunkOverlap
	}
	if s.ChunkOverlap >= s.ChunkSize {
		s.ChunkOverlap = 0
	}
	if o.RetrievalK > 0 {
		s.RetrievalK = o.RetrievalK
	}
	if o.ScoreThreshold != nil {
		s.ScoreThreshold = *o.ScoreThreshold
	}
	return s
}

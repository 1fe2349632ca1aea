package driven

import "github.com/custodia-labs/sercha-rag/internal/core/domain"

// TokenVerifier validates bearer tokens issued by the host.
type TokenVerifier interface {
	// ParseToken validates a token and extracts its claims.
	// Returns domain.ErrTokenExpired or domain.ErrTokenInvalid.
	ParseToken(token string) (*domain.TokenClaims, error)
}

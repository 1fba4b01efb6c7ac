package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/vovakirdan/wirechat-relay/internal/core"
)

// Service issues and validates session tokens for joined identities.
type Service struct {
	jwtConfig *JWTConfig
}

var _ core.TokenIssuer = (*Service)(nil)

// NewService creates a new token service.
func NewService(jwtConfig *JWTConfig) *Service {
	return &Service{jwtConfig: jwtConfig}
}

// IssueToken signs a session token for a freshly joined identity.
func (s *Service) IssueToken(id core.Identity) (string, error) {
	token, err := GenerateToken(s.jwtConfig, Claims{
		Identity:    id.Key,
		DisplayName: id.DisplayName,
		Tag:         id.Tag,
		ClientID:    id.ClientID,
	})
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

// GenerateSecret returns a random hex secret for processes started without one.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrOperatorDisabled = errors.New("operator access is not configured")
	ErrBadOperatorToken = errors.New("invalid operator token")
)

// Operator guards read-only audit endpoints with a shared token stored as a bcrypt hash.
type Operator struct {
	hash []byte
}

// NewOperator validates hash. An empty hash yields an Operator that rejects every token.
func NewOperator(hash string) (*Operator, error) {
	if hash == "" {
		return &Operator{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("operator token hash: %w", err)
	}
	return &Operator{hash: []byte(hash)}, nil
}

// Check compares token against the configured hash.
func (o *Operator) Check(token string) error {
	if len(o.hash) == 0 {
		return ErrOperatorDisabled
	}
	if token == "" {
		return ErrMissingCredentials
	}
	if err := bcrypt.CompareHashAndPassword(o.hash, []byte(token)); err != nil {
		return ErrBadOperatorToken
	}
	return nil
}

// HashToken produces the value to configure as the operator token hash.
func HashToken(token string) (string, error) {
	if len(token) < 16 {
		return "", errors.New("operator token must be at least 16 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Package auth proves who is calling the bank. Depositors sign withdrawal requests with the
// ed25519 key behind their address; operators present a token checked against a bcrypt hash.
package auth

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/personal-bank/personal_bank/internal/account"
)

const (
	maxNonceLen     = 128
	defaultNonceTTL = 24 * time.Hour
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrBadSignature       = errors.New("signature does not match account")
	ErrNonceReused        = errors.New("nonce already used")
	ErrInvalidNonce       = errors.New("nonce must be 1-128 characters")
)

// WithdrawMessage is the byte string a depositor signs to authorize a withdrawal.
func WithdrawMessage(acct account.Address, nonce string) []byte {
	return []byte(fmt.Sprintf("personalbank/withdraw/%s/%s", acct, nonce))
}

// Verifier authenticates withdrawal callers. Each nonce is accepted once per account
// for as long as the nonce store remembers it.
type Verifier struct {
	nonces NonceStore
	ttl    time.Duration
}

func NewVerifier(nonces NonceStore, ttl time.Duration) *Verifier {
	if ttl <= 0 {
		ttl = defaultNonceTTL
	}
	return &Verifier{nonces: nonces, ttl: ttl}
}

// Verify checks that sig was produced by acct's key over WithdrawMessage(acct, nonce) and
// consumes the nonce.
func (v *Verifier) Verify(ctx context.Context, acct account.Address, nonce string, sig []byte) error {
	if acct.IsZero() || len(sig) == 0 {
		return ErrMissingCredentials
	}
	if nonce == "" || len(nonce) > maxNonceLen {
		return ErrInvalidNonce
	}
	if len(sig) != ed25519.SignatureSize || !ed25519.Verify(ed25519.PublicKey(acct.Bytes()), WithdrawMessage(acct, nonce), sig) {
		return ErrBadSignature
	}

	fresh, err := v.nonces.Claim(ctx, acct.Hex()+":"+nonce, v.ttl)
	if err != nil {
		return fmt.Errorf("claim nonce: %w", err)
	}
	if !fresh {
		return ErrNonceReused
	}
	return nil
}

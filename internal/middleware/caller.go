package middleware

import (
	"encoding/base64"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/personal-bank/personal_bank/internal/account"
	"github.com/personal-bank/personal_bank/internal/auth"
)

const (
	AccountHeader   = "X-Account"
	NonceHeader     = "X-Nonce"
	SignatureHeader = "X-Signature"

	callerKey = "caller"
)

// CallerAuth authenticates the depositor making the request from the X-Account, X-Nonce and
// X-Signature headers. The signature is base64 over auth.WithdrawMessage.
func CallerAuth(v *auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		acct, err := account.Parse(c.Get(AccountHeader))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or missing "+AccountHeader)
		}
		sig, err := base64.StdEncoding.DecodeString(c.Get(SignatureHeader))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid "+SignatureHeader+" encoding")
		}

		if err := v.Verify(c.UserContext(), acct, c.Get(NonceHeader), sig); err != nil {
			switch {
			case errors.Is(err, auth.ErrMissingCredentials),
				errors.Is(err, auth.ErrBadSignature),
				errors.Is(err, auth.ErrNonceReused),
				errors.Is(err, auth.ErrInvalidNonce):
				return fiber.NewError(fiber.StatusUnauthorized, err.Error())
			default:
				return fiber.NewError(fiber.StatusInternalServerError, "caller verification unavailable")
			}
		}

		c.Locals(callerKey, acct)
		return c.Next()
	}
}

// Caller returns the account authenticated by CallerAuth.
func Caller(c *fiber.Ctx) (account.Address, bool) {
	acct, ok := c.Locals(callerKey).(account.Address)
	return acct, ok
}

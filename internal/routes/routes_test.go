package routes

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/personal-bank/personal_bank/internal/account"
	"github.com/personal-bank/personal_bank/internal/auth"
	"github.com/personal-bank/personal_bank/internal/config"
	"github.com/personal-bank/personal_bank/internal/logging"
	"github.com/personal-bank/personal_bank/internal/middleware"
)

const operatorToken = "operator-token-123456"

type testClient struct {
	t   *testing.T
	app *fiber.App
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})

	hash, err := auth.HashToken(operatorToken)
	require.NoError(t, err)

	cfg := config.Config{
		AppName:            "PersonalBankTest",
		AppEnv:             "test",
		IdempotencyTTL:     time.Minute,
		NonceTTL:           time.Minute,
		ContractAddress:    config.DevContractAddress(),
		ContractMinBalance: 100_000,
		AuditTokenHash:     hash,
		WithdrawRateLimit:  5,
	}
	app := fiber.New()
	require.NoError(t, Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logging.Discard()}))
	return &testClient{t: t, app: app}
}

func (tc *testClient) do(method, path string, body any, headers map[string]string) (int, map[string]any) {
	tc.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(tc.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("Idempotency-Key", uuid.NewString())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.app.Test(req, -1)
	require.NoError(tc.t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

type depositor struct {
	addr account.Address
	key  ed25519.PrivateKey
}

func newDepositor(t *testing.T) depositor {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	addr, err := account.FromKey(pub)
	require.NoError(t, err)
	return depositor{addr: addr, key: priv}
}

func (d depositor) withdrawHeaders() map[string]string {
	nonce := uuid.NewString()
	return map[string]string{
		middleware.AccountHeader:   d.addr.String(),
		middleware.NonceHeader:     nonce,
		middleware.SignatureHeader: base64.StdEncoding.EncodeToString(ed25519.Sign(d.key, auth.WithdrawMessage(d.addr, nonce))),
	}
}

// pay funds the depositor on the simulated chain and pays to, returning the payment id.
func (tc *testClient) pay(d depositor, to account.Address, amount uint64) string {
	tc.t.Helper()
	status, _ := tc.do(fiber.MethodPost, "/api/v1/dev/fund", fiber.Map{"address": d.addr.String(), "amount": amount}, nil)
	require.Equal(tc.t, fiber.StatusOK, status)
	status, body := tc.do(fiber.MethodPost, "/api/v1/dev/payments", fiber.Map{"from": d.addr.String(), "to": to.String(), "amount": amount}, nil)
	require.Equal(tc.t, fiber.StatusCreated, status)
	id, _ := body["payment_id"].(string)
	require.NotEmpty(tc.t, id)
	return id
}

func TestDepositAndWithdrawOverHTTP(t *testing.T) {
	tc := newTestClient(t)
	contract := config.DevContractAddress()
	alice := newDepositor(t)

	status, body := tc.do(fiber.MethodGet, "/api/v1/contract", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, contract.String(), body["address"])

	status, body = tc.do(fiber.MethodPost, "/api/v1/deposits", fiber.Map{"payment_id": tc.pay(alice, contract, 1_000_000)}, nil)
	require.Equal(t, fiber.StatusCreated, status)
	require.EqualValues(t, 1_000_000, body["balance"])

	status, body = tc.do(fiber.MethodPost, "/api/v1/deposits", fiber.Map{"payment_id": tc.pay(alice, contract, 500_000)}, nil)
	require.Equal(t, fiber.StatusCreated, status)
	require.EqualValues(t, 1_500_000, body["balance"])
	require.Equal(t, "1.500000", body["balance_display"])

	status, body = tc.do(fiber.MethodGet, "/api/v1/depositors/"+alice.addr.String(), nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, true, body["exists"])

	status, body = tc.do(fiber.MethodPost, "/api/v1/withdrawals", nil, alice.withdrawHeaders())
	require.Equal(t, fiber.StatusOK, status)
	require.EqualValues(t, 1_500_000, body["amount"])

	status, body = tc.do(fiber.MethodGet, "/api/v1/dev/accounts/"+alice.addr.String(), nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.EqualValues(t, 1_500_000, body["balance"])

	// second withdrawal succeeds with nothing to pay
	status, body = tc.do(fiber.MethodPost, "/api/v1/withdrawals", nil, alice.withdrawHeaders())
	require.Equal(t, fiber.StatusOK, status)
	require.EqualValues(t, 0, body["amount"])

	status, body = tc.do(fiber.MethodGet, "/api/v1/depositors/"+alice.addr.String(), nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, true, body["exists"])
	require.EqualValues(t, 0, body["balance"])
}

func TestDepositErrorsOverHTTP(t *testing.T) {
	tc := newTestClient(t)
	contract := config.DevContractAddress()
	alice, bob := newDepositor(t), newDepositor(t)

	status, _ := tc.do(fiber.MethodPost, "/api/v1/deposits", fiber.Map{"payment_id": uuid.NewString()}, nil)
	require.Equal(t, fiber.StatusNotFound, status)

	status, _ = tc.do(fiber.MethodPost, "/api/v1/deposits", fiber.Map{}, nil)
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = tc.do(fiber.MethodPost, "/api/v1/deposits", fiber.Map{"payment_id": tc.pay(alice, bob.addr, 10)}, nil)
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = tc.do(fiber.MethodPost, "/api/v1/deposits", fiber.Map{"payment_id": tc.pay(alice, contract, 0)}, nil)
	require.Equal(t, fiber.StatusBadRequest, status)

	id := tc.pay(alice, contract, 10)
	status, _ = tc.do(fiber.MethodPost, "/api/v1/deposits", fiber.Map{"payment_id": id}, nil)
	require.Equal(t, fiber.StatusCreated, status)
	status, _ = tc.do(fiber.MethodPost, "/api/v1/deposits", fiber.Map{"payment_id": id}, nil)
	require.Equal(t, fiber.StatusConflict, status)

	status, body := tc.do(fiber.MethodGet, "/api/v1/depositors/"+bob.addr.String(), nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, false, body["exists"])

	status, _ = tc.do(fiber.MethodGet, "/api/v1/depositors/not-an-address", nil, nil)
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestWithdrawRequiresDepositAndSignature(t *testing.T) {
	tc := newTestClient(t)
	bob := newDepositor(t)

	status, _ := tc.do(fiber.MethodPost, "/api/v1/withdrawals", nil, bob.withdrawHeaders())
	require.Equal(t, fiber.StatusNotFound, status)

	status, _ = tc.do(fiber.MethodPost, "/api/v1/withdrawals", nil, nil)
	require.Equal(t, fiber.StatusUnauthorized, status)

	mallory := newDepositor(t)
	forged := mallory.withdrawHeaders()
	forged[middleware.AccountHeader] = bob.addr.String()
	status, _ = tc.do(fiber.MethodPost, "/api/v1/withdrawals", nil, forged)
	require.Equal(t, fiber.StatusUnauthorized, status)
}

func TestAuditRequiresOperatorToken(t *testing.T) {
	tc := newTestClient(t)
	contract := config.DevContractAddress()
	alice := newDepositor(t)

	status, _ := tc.do(fiber.MethodPost, "/api/v1/deposits", fiber.Map{"payment_id": tc.pay(alice, contract, 700)}, nil)
	require.Equal(t, fiber.StatusCreated, status)

	path := "/api/v1/audit/depositors/" + alice.addr.String()
	status, _ = tc.do(fiber.MethodGet, path, nil, nil)
	require.Equal(t, fiber.StatusUnauthorized, status)

	status, body := tc.do(fiber.MethodGet, path, nil, map[string]string{fiber.HeaderAuthorization: "Bearer " + operatorToken})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "700", body["deposited"])
	require.EqualValues(t, 1, body["deposits"])
	require.Equal(t, true, body["consistent"])

	status, _ = tc.do(fiber.MethodPost, "/api/v1/withdrawals", nil, alice.withdrawHeaders())
	require.Equal(t, fiber.StatusOK, status)

	status, body = tc.do(fiber.MethodGet, path, nil, map[string]string{fiber.HeaderAuthorization: "Bearer " + operatorToken})
	require.Equal(t, fiber.StatusOK, status)
	history, _ := body["history"].([]any)
	require.Len(t, history, 1)
	entry, _ := history[0].(map[string]any)
	require.EqualValues(t, 700, entry["amount"])
	require.NotEmpty(t, entry["settlement_ref"])
}

func TestUnsignedWithdrawalsDoNotSpendCallerQuota(t *testing.T) {
	tc := newTestClient(t)
	contract := config.DevContractAddress()
	alice := newDepositor(t)

	status, _ := tc.do(fiber.MethodPost, "/api/v1/deposits", fiber.Map{"payment_id": tc.pay(alice, contract, 1000)}, nil)
	require.Equal(t, fiber.StatusCreated, status)

	// more attempts than the limit of five, each naming alice without a signature
	for i := 0; i < 7; i++ {
		status, _ = tc.do(fiber.MethodPost, "/api/v1/withdrawals", nil, map[string]string{middleware.AccountHeader: alice.addr.String()})
		require.Equal(t, fiber.StatusUnauthorized, status, "attempt %d", i)
	}

	status, body := tc.do(fiber.MethodPost, "/api/v1/withdrawals", nil, alice.withdrawHeaders())
	require.Equal(t, fiber.StatusOK, status)
	require.EqualValues(t, 1000, body["amount"])
}

func TestWithdrawalReplayRequiresSameCaller(t *testing.T) {
	tc := newTestClient(t)
	contract := config.DevContractAddress()
	alice, mallory := newDepositor(t), newDepositor(t)

	status, _ := tc.do(fiber.MethodPost, "/api/v1/deposits", fiber.Map{"payment_id": tc.pay(alice, contract, 2500)}, nil)
	require.Equal(t, fiber.StatusCreated, status)

	headers := alice.withdrawHeaders()
	headers["Idempotency-Key"] = "alice-withdraw-1"
	status, body := tc.do(fiber.MethodPost, "/api/v1/withdrawals", nil, headers)
	require.Equal(t, fiber.StatusOK, status)
	require.EqualValues(t, 2500, body["amount"])

	// a retry by alice with a fresh signature gets the stored response
	retry := alice.withdrawHeaders()
	retry["Idempotency-Key"] = "alice-withdraw-1"
	status, body = tc.do(fiber.MethodPost, "/api/v1/withdrawals", nil, retry)
	require.Equal(t, fiber.StatusOK, status)
	require.EqualValues(t, 2500, body["amount"])

	// the same key without alice's signature is rejected before the cache is consulted
	status, _ = tc.do(fiber.MethodPost, "/api/v1/withdrawals", nil, map[string]string{
		middleware.AccountHeader: alice.addr.String(),
		"Idempotency-Key":        "alice-withdraw-1",
	})
	require.Equal(t, fiber.StatusUnauthorized, status)

	// another signed caller reusing the key runs under its own scope
	other := mallory.withdrawHeaders()
	other["Idempotency-Key"] = "alice-withdraw-1"
	status, _ = tc.do(fiber.MethodPost, "/api/v1/withdrawals", nil, other)
	require.Equal(t, fiber.StatusNotFound, status)
}

func TestHealthz(t *testing.T) {
	tc := newTestClient(t)

	status, body := tc.do(fiber.MethodGet, "/healthz", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	checks, _ := body["status"].(map[string]any)
	require.Equal(t, "disabled", checks["postgres"])
	require.Equal(t, "ok", checks["redis"])
}

func TestSetupRequiresBackendsOutsideDev(t *testing.T) {
	cfg := config.Config{AppEnv: "production", ContractAddress: config.DevContractAddress()}
	err := Setup(fiber.New(), Deps{Cfg: cfg, Logger: logging.Discard()})
	require.ErrorContains(t, err, "database is required")
}

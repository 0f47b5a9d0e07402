package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v2:"
	inProgressMarker     = "__in_progress__"
	maxIdempotencyKeyLen = 128
	idempotencyOpTimeout = 2 * time.Second
)

// replay is a successful response kept for repeated requests.
type replay struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type responseCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// reserve claims key for a new request. When the key is taken it returns the finished
// response, or nil while the first request is still running.
func (rc responseCache) reserve(ctx context.Context, key string) (bool, *replay, error) {
	ok, err := rc.redis.SetNX(ctx, key, inProgressMarker, rc.ttl).Result()
	if err != nil || ok {
		return ok, nil, err
	}
	raw, err := rc.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls; the caller may simply retry
		return false, nil, nil
	}
	if err != nil || string(raw) == inProgressMarker {
		return false, nil, err
	}
	var r replay
	if err := json.Unmarshal(raw, &r); err != nil {
		return false, nil, err
	}
	return false, &r, nil
}

func (rc responseCache) save(key string, r replay) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
	defer cancel()
	return rc.redis.Set(ctx, key, payload, rc.ttl).Err()
}

func (rc responseCache) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
	defer cancel()
	if err := rc.redis.Del(ctx, key).Err(); err != nil {
		rc.logger.Warn("idempotency key release failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Idempotency replays the stored response for a repeated Idempotency-Key on POST requests.
// Keys are scoped by route and, behind CallerAuth, by the verified caller, so one depositor
// can neither read nor occupy another's keys. Only successful responses are stored; a failed
// request releases its key so the client can retry it. Without Redis it is a no-op.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	rc := responseCache{redis: cache, ttl: ttl, logger: logger}
	return func(c *fiber.Ctx) error {
		if cache == nil || c.Method() != fiber.MethodPost {
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		switch {
		case key == "":
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		case len(key) > maxIdempotencyKeyLen:
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key too long")
		}

		scope := "anon"
		if caller, ok := Caller(c); ok {
			scope = caller.Hex()
		}
		cacheKey := idempotencyPrefix + c.Path() + ":" + scope + ":" + key

		ctx, cancel := context.WithTimeout(c.UserContext(), idempotencyOpTimeout)
		defer cancel()
		reserved, prior, err := rc.reserve(ctx, cacheKey)
		if err != nil {
			logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}
		if !reserved {
			if prior == nil {
				return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
			}
			c.Set(fiber.HeaderContentType, prior.ContentType)
			return c.Status(prior.Status).Send(prior.Body)
		}

		if err := c.Next(); err != nil {
			rc.release(cacheKey)
			return err
		}
		status := c.Response().StatusCode()
		if status >= fiber.StatusBadRequest {
			rc.release(cacheKey)
			return nil
		}

		r := replay{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		}
		if err := rc.save(cacheKey, r); err != nil {
			logger.Error("failed to persist idempotent response", slog.String("key", key), slog.Any("error", err))
			rc.release(cacheKey)
		}
		return nil
	}
}

package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockcore/internal/core/apperror"
	appctx "stockcore/internal/core/context"
	"stockcore/internal/infrastructure/cache"
	"stockcore/pkg/logger"
)

const (
	HeaderIdempotencyKey    = "X-Idempotency-Key"
	HeaderIdempotentReplay  = "X-Idempotent-Replay"
	maxIdempotencyBodyBytes = 1 << 20 // 1 MiB
)

// IdempotencyStore is the response store behind Idempotency.
type IdempotencyStore interface {
	Acquire(ctx context.Context, key, fingerprint string) (*cache.StoredResponse, error)
	Complete(ctx context.Context, key, fingerprint string, resp cache.StoredResponse) error
	Fail(ctx context.Context, key string) error
}

// Idempotency replays the first successful response for an X-Idempotency-Key.
// Keys are scoped to the user and route; the body hash guards against reuse
// of a key for a different request. Failed requests release the key.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || store == nil {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			_ = c.Error(apperror.NewValidation("unreadable request body"))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		scoped := appctx.GetUserID(ctx) + ":" + c.Request.Method + " " + c.Request.URL.Path + ":" + key
		sum := sha256.Sum256(body)
		fingerprint := hex.EncodeToString(sum[:])

		replay, err := store.Acquire(ctx, scoped, fingerprint)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
			} else {
				_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			}
			c.Abort()
			return
		}
		if replay != nil {
			c.Header(HeaderIdempotentReplay, "true")
			c.Data(replay.Status, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		rec := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		// Detached: the outcome must be stored even if the client went away.
		storeCtx := context.WithoutCancel(ctx)
		status := rec.Status()
		if len(c.Errors) > 0 || status >= http.StatusBadRequest {
			if err := store.Fail(storeCtx, scoped); err != nil {
				logger.Warn(ctx, "release idempotency key failed", "error", err)
			}
			return
		}
		resp := cache.StoredResponse{
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		}
		if err := store.Complete(storeCtx, scoped, fingerprint, resp); err != nil {
			logger.Warn(ctx, "store idempotent response failed", "error", err)
		}
	}
}

type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

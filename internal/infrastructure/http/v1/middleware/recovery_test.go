package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRecoveryKeepsPanicErrorAsCause(t *testing.T) {
	boom := errors.New("bucket map corrupted")
	var recorded *gin.Error

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Next()
		recorded = c.Errors.Last()
	})
	r.Use(Recovery())
	r.GET("/panic", func(*gin.Context) { panic(boom) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	require.NotNil(t, recorded)
	assert.ErrorIs(t, recorded.Err, boom)
	assert.True(t, apperror.HasCode(recorded.Err, apperror.CodeInternal))
}

func TestRecoveryReraisesAbortHandler(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/abort", func(*gin.Context) { panic(http.ErrAbortHandler) })

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abort", nil))
	})
}

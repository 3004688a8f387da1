package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type qty string

func (q qty) String() string { return string(q) }

func TestAsAppErrorThroughWrapping(t *testing.T) {
	base := NewNotFound("warehouse", "w-1")
	wrapped := fmt.Errorf("load warehouse: %w", base)

	got, ok := AsAppError(wrapped)
	assert.True(t, ok)
	assert.Same(t, base, got)
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, http.StatusNotFound, GetHTTPStatus(wrapped))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
}

func TestIsDuplicate(t *testing.T) {
	err := fmt.Errorf("insert: %w", NewDuplicate("goods_receipt", "number", "GRN-1"))

	assert.True(t, IsDuplicate(err, ""))
	assert.True(t, IsDuplicate(err, "number"))
	assert.False(t, IsDuplicate(err, "serial_number"))
	assert.False(t, IsDuplicate(NewConflict("x"), ""))
}

func TestInsufficientStockDetails(t *testing.T) {
	err := NewInsufficientStock("p-1", qty("9.0000"), qty("5.0000"))

	assert.Equal(t, CodeInsufficientStock, err.Code)
	assert.Equal(t, "9.0000", err.Details["required"])
	assert.Equal(t, "5.0000", err.Details["available"])
	assert.Contains(t, err.Message, "p-1")
}

func TestErrorString(t *testing.T) {
	err := NewInternal(errors.New("db down"))
	assert.Equal(t, "INTERNAL_ERROR: Internal server error (caused by: db down)", err.Error())
	assert.Equal(t, "FORBIDDEN: nope", NewForbidden("nope").Error())
}

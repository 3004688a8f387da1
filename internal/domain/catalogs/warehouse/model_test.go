package warehouse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
)

func TestLocationRequireIn(t *testing.T) {
	wh := id.New()
	loc := &Location{ID: id.New(), WarehouseID: wh, IsActive: true}

	assert.NoError(t, loc.RequireIn(wh))
	assert.True(t, apperror.HasCode(loc.RequireIn(id.New()), apperror.CodeValidation))

	loc.IsActive = false
	assert.True(t, apperror.IsNotFound(loc.RequireIn(wh)))
}

func TestWarehouseRequireActive(t *testing.T) {
	w := &Warehouse{ID: id.New(), IsActive: true}
	assert.NoError(t, w.RequireActive())

	w.IsActive = false
	assert.True(t, apperror.IsNotFound(w.RequireActive()))
}

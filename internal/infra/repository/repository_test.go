package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/cityflow/cityflow/internal/domain"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil, "complaint"))

	err := translate(gorm.ErrRecordNotFound, "complaint")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "complaint not found", err.Error())

	err = translate(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), "category")
	assert.ErrorIs(t, err, domain.ErrConflict)

	err = translate(gorm.ErrForeignKeyViolated, "rating")
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = translate(fmt.Errorf("connection reset"), "support")
	assert.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "not found"))
	assert.Contains(t, err.Error(), "support: connection reset")
}

func TestCategoryCacheKeys(t *testing.T) {
	key := categoryNameKey("Sokak Aydınlatması")
	assert.True(t, strings.HasPrefix(key, "category:name:"))
	assert.NotContains(t, key, " ")
	assert.Len(t, key, len("category:name:")+16)
	assert.Equal(t, key, categoryNameKey("Sokak Aydınlatması"))
	assert.NotEqual(t, key, categoryNameKey("sokak aydınlatması"))

	assert.Equal(t, "category:id:7", categoryIDKey(7))
	assert.NotEqual(t, categoryListKey(true), categoryListKey(false))
}

func TestConnOutsideTransaction(t *testing.T) {
	assert.False(t, inTx(context.Background()))
	assert.True(t, inTx(context.WithValue(context.Background(), txCtxKey{}, &gorm.DB{})))
}

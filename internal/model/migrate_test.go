package model_test

import (
	"testing"

	"coaching-rag-be/internal/model"
	"coaching-rag-be/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorColumnType(t *testing.T) {
	columnType, err := model.VectorColumnType(768)
	require.NoError(t, err)
	assert.Equal(t, "vector(768)", columnType)

	columnType, err = model.VectorColumnType(1536)
	require.NoError(t, err)
	assert.Equal(t, "vector(1536)", columnType)

	for _, dimension := range []int{0, -1, model.MaxVectorDimension + 1} {
		_, err := model.VectorColumnType(dimension)
		assert.Error(t, err, "dimension %d", dimension)
	}
}

func TestAutoMigrateRejectsInvalidDimension(t *testing.T) {
	db, err := database.NewInMemorySQLite("migrate_" + uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	err = model.AutoMigrate(db, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding dimension 0")
	assert.False(t, db.Migrator().HasTable(&model.Chunk{}))

	require.NoError(t, model.AutoMigrate(db, 1536))
	assert.True(t, db.Migrator().HasTable(&model.Chunk{}))
}

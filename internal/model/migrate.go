package model

import (
	"fmt"
	"log"

	"gorm.io/gorm"
)

// MaxVectorDimension is the largest dimension pgvector can index with hnsw.
const MaxVectorDimension = 2000

// AllModels lists every table owned by this service, in creation order.
func AllModels() []interface{} {
	return []interface{}{
		&Document{},
		&Chunk{},
		&ConversationSession{},
		&ConversationMessage{},
		&ConversationCitation{},
		&UserProfile{},
	}
}

// VectorColumnType is the postgres type of chunks.embedding for the configured dimension.
func VectorColumnType(dimension int) (string, error) {
	if dimension < 1 || dimension > MaxVectorDimension {
		return "", fmt.Errorf("embedding dimension %d out of range 1..%d", dimension, MaxVectorDimension)
	}
	return fmt.Sprintf("vector(%d)", dimension), nil
}

// AutoMigrate prepares extensions (postgres only), migrates all models and sizes
// chunks.embedding to the configured embedding dimension.
func AutoMigrate(db *gorm.DB, embeddingDimension int) error {
	columnType, err := VectorColumnType(embeddingDimension)
	if err != nil {
		return err
	}

	if db.Dialector.Name() != "postgres" {
		return db.AutoMigrate(AllModels()...)
	}

	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
	}
	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return err
	}
	return alignEmbeddingColumn(db, embeddingDimension, columnType)
}

// alignEmbeddingColumn retypes chunks.embedding when its stored dimension differs.
// pgvector keeps the dimension in atttypmod.
func alignEmbeddingColumn(db *gorm.DB, dimension int, columnType string) error {
	var current int
	if err := db.Raw(
		`SELECT atttypmod FROM pg_attribute WHERE attrelid = 'chunks'::regclass AND attname = 'embedding'`,
	).Scan(&current).Error; err != nil {
		return fmt.Errorf("inspect chunks.embedding: %w", err)
	}
	if current == dimension {
		return nil
	}

	var chunks int64
	if err := db.Model(&Chunk{}).Count(&chunks).Error; err != nil {
		return err
	}
	if chunks > 0 {
		return fmt.Errorf("chunks.embedding is vector(%d) and holds %d chunks; re-ingest before switching to %d dimensions", current, chunks, dimension)
	}

	log.Printf("Resizing chunks.embedding from vector(%d) to %s", current, columnType)
	return db.Exec(fmt.Sprintf(`ALTER TABLE chunks ALTER COLUMN embedding TYPE %s`, columnType)).Error
}

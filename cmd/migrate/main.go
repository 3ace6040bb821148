package main

import (
	"log"

	"coaching-rag-be/internal/config"
	"coaching-rag-be/internal/model"
	"coaching-rag-be/pkg/database"
)

func main() {
	cfg := config.Load()

	db, err := database.NewGormDB(cfg.Database.Driver, cfg.Database.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Running AutoMigrate...")
	if err := model.AutoMigrate(db, cfg.Ai.EmbeddingDimension); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	if db.Dialector.Name() == "postgres" {
		log.Println("Step 2: Creating vector index...")
		postMigrationSQL := []string{
			`CREATE INDEX IF NOT EXISTS idx_chunks_embedding_cosine ON chunks USING hnsw (embedding vector_cosine_ops);`,
		}
		for _, sql := range postMigrationSQL {
			if err := db.Exec(sql).Error; err != nil {
				log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
			}
		}
	}

	log.Println("✅ Success: Database migration completed successfully via GORM.")
}

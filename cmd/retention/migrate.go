package main

import (
	"fmt"

	"coaching-rag-be/internal/config"
	"coaching-rag-be/internal/model"
	"coaching-rag-be/pkg/database"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema used by the sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		db, err := database.NewGormDB(cfg.Database.Driver, cfg.Database.Connection)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		if err := model.AutoMigrate(db, cfg.Ai.EmbeddingDimension); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "Schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

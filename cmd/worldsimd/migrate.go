package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"weltgrid/config"
	"weltgrid/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the sqlite schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := persistence.Open(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		defer store.Close()

		fmt.Printf("worldsimd: schema applied at %s\n", cfg.DatabasePath)
		return nil
	},
}

func loadConfig() (config.ServerConfig, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.FromYaml(configPath)
}

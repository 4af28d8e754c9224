package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/crosstrim/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes the example config if none exists and initializes the history database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if shared.FileExists(configPath) {
		loaded, err := shared.LoadConfig(configPath)
		if err != nil {
			return err
		}
		config = loaded
		r.logger.Info("using existing config", "path", configPath)
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		r.logger.Info("config file created", "path", configPath)
	}

	if config.Database.Path == "" {
		r.logger.Warn("database.path is empty, run history is disabled")
		return r.writePlain("Config ready at %s (history disabled)\n", configPath)
	}

	r.logger.Info("initializing database", "path", config.Database.Path)
	db, err := shared.OpenJournal(config.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("Config ready at %s\nHistory database ready at %s\n", configPath, config.Database.Path)
}

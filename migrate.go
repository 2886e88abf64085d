package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/khalidAdell/quick-task/modules/identity"
	"github.com/khalidAdell/quick-task/modules/notification"
	"github.com/khalidAdell/quick-task/modules/payment"
	"github.com/khalidAdell/quick-task/modules/task"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schemas and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context())
	},
}

func runMigrate(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sqliteDBs := []struct {
		name string
		open func(string) (*gorm.DB, error)
	}{
		{"identity", identity.OpenDB},
		{"notifications", notification.OpenDB},
		{"payments", payment.OpenDB},
	}
	for _, d := range sqliteDBs {
		db, err := d.open(cfg.DB.SQLiteDSN(d.name))
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		log.Printf("[migrate] %s schema up to date", d.name)
	}

	store, err := task.OpenStore(ctx, taskConfig(cfg))
	if err != nil {
		return fmt.Errorf("tasks: %w", err)
	}
	defer store.Close()
	log.Printf("[migrate] tasks schema up to date (%s)", cfg.DB.Driver)
	return nil
}

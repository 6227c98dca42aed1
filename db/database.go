package db

import (
	"context"
	"fmt"

	"blogmusic/config"
	"blogmusic/core/auth"
	"blogmusic/logger"
	"blogmusic/model"
	"blogmusic/repository"

	"gorm.io/gorm"
)

// Models lists every table the service owns, in migration order.
var Models = []interface{}{
	&model.User{},
	&model.Music{},
	&model.Banner{},
	&model.Announcement{},
	&model.Popup{},
}

// AutoMigrate 自动迁移所有模型
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("GORM database not initialized")
	}
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}
	logger.Info("Models migrated successfully with GORM.")
	return nil
}

// EnsureAdmin creates the bootstrap admin account if no user with that name exists.
// An empty password in config skips the step.
func EnsureAdmin(ctx context.Context, users repository.UserRepository, cfg *config.Config) error {
	if cfg.AdminPassword == "" {
		logger.Warn("ADMIN_PASSWORD not set, skipping admin bootstrap")
		return nil
	}

	existing, err := users.GetByUsername(ctx, cfg.AdminUsername)
	if err != nil {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}
	if existing != nil {
		logger.Info("admin user already exists", logger.String("username", cfg.AdminUsername))
		return nil
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	admin := &model.User{
		Username:     cfg.AdminUsername,
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
	}
	if err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created",
		logger.String("username", admin.Username),
		logger.Int64("id", admin.ID))
	return nil
}

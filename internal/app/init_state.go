package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fitflow/billing/internal/config"
	"github.com/fitflow/billing/internal/db"
	"github.com/fitflow/billing/internal/models"
	"github.com/fitflow/billing/internal/security"
	"github.com/gin-gonic/gin/binding"
	"gorm.io/gorm"
)

// HasAdminInitialized reports whether the system has at least one admin account.
func HasAdminInitialized(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("nil db")
	}
	if !conn.Migrator().HasTable(&models.Admin{}) {
		return false, nil
	}
	var count int64
	if errCount := conn.Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}

// adminIdentity is validated with the same rules as the admin creation endpoint.
type adminIdentity struct {
	Email string `binding:"required,email"`
}

// EnsureAdminWithConn returns the admin with email, creating an active one named name when
// it does not exist yet.
func EnsureAdminWithConn(ctx context.Context, conn *gorm.DB, name, email string) (models.Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	identity := adminIdentity{Email: email}
	if errValidate := binding.Validator.ValidateStruct(&identity); errValidate != nil {
		return models.Admin{}, fmt.Errorf("invalid admin email %q: %w", email, errValidate)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	var admin models.Admin
	errFind := conn.WithContext(ctx).Where("email = ?", email).First(&admin).Error
	if errFind == nil {
		return admin, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return models.Admin{}, fmt.Errorf("query admin: %w", errFind)
	}
	admin = models.Admin{Name: name, Email: email, Active: true}
	if errCreate := conn.WithContext(ctx).Create(&admin).Error; errCreate != nil {
		return models.Admin{}, fmt.Errorf("create admin: %w", errCreate)
	}
	return admin, nil
}

// SetAdminPassword stores the bcrypt hash of password for the admin.
func SetAdminPassword(ctx context.Context, conn *gorm.DB, adminID uint64, password string) error {
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return errHash
	}
	if errUpdate := conn.WithContext(ctx).Model(&models.Admin{}).Where("id = ?", adminID).Update("password", hash).Error; errUpdate != nil {
		return fmt.Errorf("set admin password: %w", errUpdate)
	}
	return nil
}

// BootstrapAdmin ensures an admin exists and returns a bearer token for it. A non-empty
// password replaces the admin's login password.
func BootstrapAdmin(ctx context.Context, cfg config.AppConfig, name, email, password string) (string, error) {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	jwtConfig, errJWT := config.LoadJWTConfig(configPath)
	if errJWT != nil {
		return "", errJWT
	}
	if strings.TrimSpace(jwtConfig.Secret) == "" {
		return "", ErrMissingJWTSecret
	}

	conn, err := openDatabase(configPath)
	if err != nil {
		return "", err
	}
	defer closeDatabase(conn)
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return "", errMigrate
	}

	admin, errAdmin := EnsureAdminWithConn(ctx, conn, name, email)
	if errAdmin != nil {
		return "", errAdmin
	}
	if password != "" {
		if errPassword := SetAdminPassword(ctx, conn, admin.ID, password); errPassword != nil {
			return "", errPassword
		}
	}
	return security.IssueToken(jwtConfig.Secret, security.RoleAdmin, admin.ID, jwtConfig.Expiry, time.Now().UTC())
}

package database

import (
	"codeforge/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewDBConnection opens the optional crash sink database. A nil return
// disables persistence; the engine runs fully without it.
func NewDBConnection(appConfig *config.AppConfig, logger *zap.Logger) *gorm.DB {
	if appConfig.DatabaseURL == "" {
		return nil
	}
	db, err := gorm.Open(postgres.Open(appConfig.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Error("failed to connect crash database, persistence disabled", zap.Error(err))
		return nil
	}
	logger.Debug("connected to crash database")
	return db
}

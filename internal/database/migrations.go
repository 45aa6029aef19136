package database

import (
	"geowarden/internal/database/models"

	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GeoSpoofDetection{},
		&models.Throttle{},
		&models.ModerationAction{},
		&models.IPReputation{},
	)
}

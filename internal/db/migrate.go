package db

import (
	"autotrader/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Settings{},
		&models.DayState{},
		&models.TradeSignal{},
		&models.Cooldown{},
		&models.Trade{},
	)
}

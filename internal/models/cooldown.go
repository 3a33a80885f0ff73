package models

import "time"

// Cooldown blocks re-entry into a symbol until ExpiresAt. SymbolKey is the
// normalized base asset, so every quote-suffix spelling of the same symbol
// lands on the same row.
type Cooldown struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"type:varchar(64);not null;uniqueIndex:idx_cooldown_user_symbol"`
	SymbolKey string `gorm:"type:varchar(20);not null;uniqueIndex:idx_cooldown_user_symbol"`

	ExpiresAt time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Cooldown) TableName() string {
	return "symbol_cooldowns"
}

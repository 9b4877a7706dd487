package models

import (
	"time"

	"gorm.io/gorm"
)

// Candle is a stored daily close for a symbol.
// There is at most one row per (symbol, open time).
type Candle struct {
	gorm.Model
	Symbol   string    `gorm:"uniqueIndex:idx_symbol_time;not null"`
	OpenTime time.Time `gorm:"uniqueIndex:idx_symbol_time;not null"`
	Close    float64   `gorm:"not null"`
	Source   string    // where the close came from, e.g. "binance"
}

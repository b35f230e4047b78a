package main

import (
	"time"
)

// GORM models for the database

// WatchedStock is one ticker on the user's watchlist. Position keeps the
// order the user added them in.
type WatchedStock struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Symbol    string     `gorm:"uniqueIndex;not null" json:"symbol"`
	Name      string     `gorm:"" json:"name"`
	Position  int        `gorm:"not null;default:0" json:"position"`
	AddedAt   time.Time  `gorm:"autoCreateTime" json:"added_at"`
	LastSync  *time.Time `gorm:"" json:"last_sync"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"-"`
}

func (WatchedStock) TableName() string {
	return "watched_stocks"
}

// QuoteSnapshot is a quote as it was fetched from upstream.
type QuoteSnapshot struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Symbol        string    `gorm:"index:idx_snapshot_symbol_time;not null" json:"symbol"`
	FetchedAt     time.Time `gorm:"index:idx_snapshot_symbol_time;not null" json:"fetched_at"`
	Price         float64   `gorm:"not null" json:"price"`
	Change        float64   `gorm:"not null" json:"change"`
	ChangePercent float64   `gorm:"not null" json:"change_percent"`
	Volume        int64     `gorm:"not null" json:"volume"`
	PERatio       *float64  `gorm:"column:pe_ratio" json:"pe_ratio"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"-"`
}

func (QuoteSnapshot) TableName() string {
	return "quote_snapshots"
}

// Get all model types for auto migration
var allModels = []interface{}{
	&WatchedStock{},
	&QuoteSnapshot{},
}

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; handlers and the scheduler share this pool.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(allModels...); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Watched stock operations

// AddWatchedStock appends symbol to the end of the watchlist. It reports
// false when the symbol was already watched.
func (d *Database) AddWatchedStock(symbol, name string) (bool, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	added := false

	err := d.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&WatchedStock{}).Where("symbol = ?", symbol).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		var last int
		if err := tx.Model(&WatchedStock{}).Select("COALESCE(MAX(position), -1)").Row().Scan(&last); err != nil {
			return err
		}

		if err := tx.Create(&WatchedStock{Symbol: symbol, Name: name, Position: last + 1}).Error; err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to add watched stock: %w", err)
	}
	return added, nil
}

// RemoveWatchedStock reports false when the symbol was not watched.
func (d *Database) RemoveWatchedStock(symbol string) (bool, error) {
	result := d.db.Where("symbol = ?", strings.ToUpper(symbol)).Delete(&WatchedStock{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to remove watched stock: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (d *Database) GetWatchedStocks() ([]WatchedStock, error) {
	var stocks []WatchedStock
	result := d.db.Order("position ASC").Order("id ASC").Find(&stocks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query watched stocks: %w", result.Error)
	}
	return stocks, nil
}

func (d *Database) WatchedSymbols() ([]string, error) {
	stocks, err := d.GetWatchedStocks()
	if err != nil {
		return nil, err
	}
	symbols := make([]string, len(stocks))
	for i, s := range stocks {
		symbols[i] = s.Symbol
	}
	return symbols, nil
}

func (d *Database) UpdateLastSync(symbol string, at time.Time) error {
	result := d.db.Model(&WatchedStock{}).
		Where("symbol = ?", symbol).
		Update("last_sync", at.UTC())
	if result.Error != nil {
		return fmt.Errorf("failed to update last sync: %w", result.Error)
	}
	return nil
}

func (d *Database) UpdateWatchedName(symbol, name string) error {
	result := d.db.Model(&WatchedStock{}).
		Where("symbol = ?", symbol).
		Update("name", name)
	if result.Error != nil {
		return fmt.Errorf("failed to update name: %w", result.Error)
	}
	return nil
}

// SeedWatchlist fills an empty watchlist with symbols. A non-empty
// watchlist is left alone.
func (d *Database) SeedWatchlist(symbols []string) error {
	var count int64
	if err := d.db.Model(&WatchedStock{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count watched stocks: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, sym := range symbols {
		if _, err := d.AddWatchedStock(sym, ""); err != nil {
			return err
		}
	}
	return nil
}

// ClearWatchlist removes every watched stock.
func (d *Database) ClearWatchlist() error {
	if err := d.db.Where("1 = 1").Delete(&WatchedStock{}).Error; err != nil {
		return fmt.Errorf("failed to clear watchlist: %w", err)
	}
	return nil
}

// Quote snapshot operations

// RecordQuote stores one fetched quote.
func (d *Database) RecordQuote(q Quote) error {
	snap := QuoteSnapshot{
		Symbol:        q.Symbol,
		FetchedAt:     q.FetchedAt.UTC(),
		Price:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		Volume:        q.Volume,
		PERatio:       q.PERatio,
	}
	if err := d.db.Create(&snap).Error; err != nil {
		return fmt.Errorf("failed to record quote %s: %w", q.Symbol, err)
	}
	return nil
}

// GetSnapshots returns snapshots for symbol fetched at or after since,
// oldest first.
func (d *Database) GetSnapshots(symbol string, since time.Time) ([]QuoteSnapshot, error) {
	var snaps []QuoteSnapshot
	result := d.db.Where("symbol = ? AND fetched_at >= ?", strings.ToUpper(symbol), since.UTC()).
		Order("fetched_at ASC").
		Find(&snaps)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", result.Error)
	}
	return snaps, nil
}

// LatestSnapshot returns the most recent snapshot, or nil when none exist.
func (d *Database) LatestSnapshot(symbol string) (*QuoteSnapshot, error) {
	var snap QuoteSnapshot
	result := d.db.Where("symbol = ?", strings.ToUpper(symbol)).
		Order("fetched_at DESC").
		First(&snap)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest snapshot: %w", result.Error)
	}
	return &snap, nil
}

// SnapshotCount is the number of stored snapshots across all symbols.
func (d *Database) SnapshotCount() (int64, error) {
	var count int64
	if err := d.db.Model(&QuoteSnapshot{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// PruneSnapshots deletes snapshots fetched before cutoff.
func (d *Database) PruneSnapshots(cutoff time.Time) (int64, error) {
	result := d.db.Where("fetched_at < ?", cutoff.UTC()).Delete(&QuoteSnapshot{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package cache

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SavedLine is one row of a persisted cache snapshot.
type SavedLine struct {
	ID   uint   `gorm:"primaryKey"`
	Seq  int    `gorm:"index"`
	Text string `gorm:"not null"`
}

// Store persists cache snapshots across restarts in a sqlite file.
type Store struct {
	db *gorm.DB
}

// OpenStore opens (creating if needed) the sqlite snapshot database at path.
func OpenStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&SavedLine{}); err != nil {
		return nil, fmt.Errorf("cache: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Save replaces the stored snapshot with lines.
func (store *Store) Save(lines []string) error {
	return store.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&SavedLine{}).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		rows := make([]SavedLine, len(lines))
		for i, line := range lines {
			rows[i] = SavedLine{Seq: i, Text: line}
		}
		return tx.CreateInBatches(rows, 100).Error
	})
}

// Load returns the stored snapshot, oldest first.
func (store *Store) Load() ([]string, error) {
	var rows []SavedLine
	if err := store.db.Order("seq").Find(&rows).Error; err != nil {
		return nil, err
	}
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = row.Text
	}
	return lines, nil
}

func (store *Store) Close() error {
	sqlDB, err := store.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

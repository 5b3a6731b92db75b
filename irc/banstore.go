package irc

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BanEntry represents a K-line or G-line ban
type BanEntry struct {
	ID         uint      `gorm:"primaryKey"`
	Hostmask   string    `gorm:"index"` // The hostmask pattern (nick!user@host)
	Reason     string    // Reason for the ban
	Setter     string    // Who set the ban
	SetTime    time.Time // When the ban was set
	ExpiryTime time.Time // When the ban expires (zero = permanent)
	IsGlobal   bool      // Whether this is a G-line (network-wide)
}

// Expired reports whether the ban has lapsed.
func (b *BanEntry) Expired() bool {
	return !b.ExpiryTime.IsZero() && time.Now().After(b.ExpiryTime)
}

// BanStore persists K-lines and G-lines across restarts.
type BanStore struct {
	db *gorm.DB
}

// OpenBanStore opens (and migrates) the ban database at the given path.
func OpenBanStore(path string) (*BanStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ban database: %w", err)
	}
	if err := db.AutoMigrate(&BanEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate ban database: %w", err)
	}
	return &BanStore{db: db}, nil
}

// Close closes the underlying database.
func (bs *BanStore) Close() error {
	sqlDB, err := bs.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Add stores a ban, replacing any earlier ban on the same hostmask of
// the same kind.
func (bs *BanStore) Add(ban *BanEntry) error {
	err := bs.db.Where("hostmask = ? AND is_global = ?", ban.Hostmask, ban.IsGlobal).
		Delete(&BanEntry{}).Error
	if err != nil {
		return err
	}
	return bs.db.Create(ban).Error
}

// Remove deletes a ban by hostmask and kind. It reports whether a ban
// was present.
func (bs *BanStore) Remove(hostmask string, global bool) (bool, error) {
	res := bs.db.Where("hostmask = ? AND is_global = ?", hostmask, global).
		Delete(&BanEntry{})
	return res.RowsAffected > 0, res.Error
}

// All returns every stored ban, pruning expired ones on the way.
func (bs *BanStore) All() ([]*BanEntry, error) {
	var bans []*BanEntry
	if err := bs.db.Find(&bans).Error; err != nil {
		return nil, err
	}

	live := bans[:0]
	for _, ban := range bans {
		if ban.Expired() {
			bs.db.Delete(ban)
			continue
		}
		live = append(live, ban)
	}
	return live, nil
}

// Match returns the first live ban whose hostmask matches the given
// host (the user part is wildcarded since the host check happens before
// registration).
func (bs *BanStore) Match(host string) (*BanEntry, error) {
	bans, err := bs.All()
	if err != nil {
		return nil, err
	}
	probe := fmt.Sprintf("*!*@%s", host)
	for _, ban := range bans {
		if wildcardMatch(probe, ban.Hostmask) || wildcardMatch(host, ban.Hostmask) {
			return ban, nil
		}
	}
	return nil, nil
}

// MatchPrefix returns the first live ban matching a full nick!user@host
// prefix.
func (bs *BanStore) MatchPrefix(prefix string) (*BanEntry, error) {
	bans, err := bs.All()
	if err != nil {
		return nil, err
	}
	for _, ban := range bans {
		if wildcardMatch(prefix, ban.Hostmask) {
			return ban, nil
		}
	}
	return nil, nil
}

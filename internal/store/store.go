package store

import (
	"fmt"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sushantdhakal00/discord-bot/internal/models"
)

// Store wraps the SQLite ledger. SQLite is opened with immediate transaction
// locking, and a process-wide mutex serialises writers on top of that so
// every multi-step balance mutation runs as one exclusive-write transaction.
// No caller ever mutates a balance outside WithTx + AdjustBalanceTx.
type Store struct {
	db *gorm.DB
	mu sync.Mutex
}

// Open opens (or creates) the database at path and migrates the schema.
// Pass ":memory:" for tests.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL", path)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Account{},
		&models.Commitment{},
		&models.Pool{},
		&models.PoolEntry{},
		&models.Loan{},
		&models.Withdrawal{},
		&models.Transaction{},
		&models.Meta{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn inside one write transaction, holding the process write
// lock for its duration. All balance, pool, loan, and commitment mutations
// go through here.
func (s *Store) WithTx(fn func(tx *gorm.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Transaction(fn)
}

// Read runs fn against the database without the write lock. fn must not
// mutate anything.
func (s *Store) Read(fn func(db *gorm.DB) error) error {
	return fn(s.db)
}

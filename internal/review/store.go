// Package review persists the last recipe text an operator accepted for each
// build unit, so the next review can be shown as a diff against it.
package review

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "recipe/"

// Config configures the baseline store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	InMemory   bool
	SyncWrites bool

	// Logger receives badger's own log output. Nil silences it.
	Logger *slog.Logger
}

// DefaultConfig returns the configuration used for the on-disk store.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store holds reviewed recipe baselines keyed by build unit.
type Store struct {
	db *badger.DB
}

// Open opens or creates the store.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("review store path is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("creating review store %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening review store: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the accepted recipe for base. ok is false when base was never
// reviewed.
func (s *Store) Get(base string) (text string, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(base))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			text, ok = string(val), true
			return nil
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("reading baseline for %s: %w", base, err)
	}
	return text, ok, nil
}

// Put records text as the accepted recipe for base.
func (s *Store) Put(base, text string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(base), []byte(text))
	})
	if err != nil {
		return fmt.Errorf("saving baseline for %s: %w", base, err)
	}
	return nil
}

// Bases lists every build unit with a stored baseline, in key order.
func (s *Store) Bases() ([]string, error) {
	var bases []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			bases = append(bases, string(it.Item().Key()[len(keyPrefix):]))
		}
		return nil
	})
	return bases, err
}

// Clear forgets every baseline and returns how many were removed.
func (s *Store) Clear() (int, error) {
	bases, err := s.Bases()
	if err != nil {
		return 0, err
	}
	if err := s.db.DropPrefix([]byte(keyPrefix)); err != nil {
		return 0, fmt.Errorf("clearing baselines: %w", err)
	}
	return len(bases), nil
}

// Close compacts the value log once and closes the database.
func (s *Store) Close() error {
	if !s.db.Opts().InMemory {
		// ErrNoRewrite only means nothing was worth reclaiming
		_ = s.db.RunValueLogGC(0.5)
	}
	return s.db.Close()
}

func key(base string) []byte {
	return []byte(keyPrefix + base)
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

package pending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/edgard/matchbot/internal/domain"
)

var badgerKeyPrefix = []byte("pending/")

// BadgerConfig configures the embedded backend.
type BadgerConfig struct {
	// Path is ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     *slog.Logger
}

// BadgerQueue persists notices in an embedded Badger database.
type BadgerQueue struct {
	db *badger.DB
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// NewBadgerQueue opens the database described by cfg.
func NewBadgerQueue(cfg BadgerConfig) (*BadgerQueue, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger path is required for a persistent queue")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
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
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerQueue{db: db}, nil
}

func badgerKey(recipient domain.UserID) []byte {
	return append(append([]byte{}, badgerKeyPrefix...), formatID(recipient)...)
}

func (q *BadgerQueue) Put(_ context.Context, recipient, sender domain.UserID) error {
	err := q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(recipient), []byte(formatID(sender)))
	})
	if err != nil {
		return fmt.Errorf("failed to park notice for %d: %w", recipient, err)
	}
	return nil
}

func (q *BadgerQueue) Peek(_ context.Context, recipient domain.UserID) (domain.UserID, bool, error) {
	var sender domain.UserID
	found := false
	err := q.db.View(func(txn *badger.Txn) error {
		var err error
		sender, found, err = readSender(txn, recipient)
		return err
	})
	return sender, found, err
}

func (q *BadgerQueue) Take(_ context.Context, recipient domain.UserID) (domain.UserID, bool, error) {
	var sender domain.UserID
	found := false
	err := q.db.Update(func(txn *badger.Txn) error {
		var err error
		sender, found, err = readSender(txn, recipient)
		if err != nil || !found {
			return err
		}
		return txn.Delete(badgerKey(recipient))
	})
	return sender, found, err
}

func readSender(txn *badger.Txn, recipient domain.UserID) (domain.UserID, bool, error) {
	item, err := txn.Get(badgerKey(recipient))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read pending notice for %d: %w", recipient, err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read pending notice for %d: %w", recipient, err)
	}
	sender, err := parseID(string(val))
	if err != nil {
		return 0, false, err
	}
	return sender, true, nil
}

func (q *BadgerQueue) Remove(_ context.Context, recipient domain.UserID) error {
	err := q.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(recipient))
	})
	if err != nil {
		return fmt.Errorf("failed to remove pending notice for %d: %w", recipient, err)
	}
	return nil
}

func (q *BadgerQueue) RemoveIf(_ context.Context, recipient, sender domain.UserID) (bool, error) {
	removed := false
	err := q.db.Update(func(txn *badger.Txn) error {
		parked, found, err := readSender(txn, recipient)
		if err != nil || !found || parked != sender {
			return err
		}
		removed = true
		return txn.Delete(badgerKey(recipient))
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove pending notice for %d: %w", recipient, err)
	}
	return removed, nil
}

func (q *BadgerQueue) Close() error {
	return q.db.Close()
}

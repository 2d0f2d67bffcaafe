package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"
)

var _ Backend = (*BadgerBackend)(nil)

type BadgerConfig struct {
	// Path is the directory for the database files, ignored when InMemory is set.
	Path string
	// InMemory keeps everything in RAM, used in tests.
	InMemory bool
	// SyncWrites makes every committed write durable before Set returns.
	SyncWrites bool
}

// BadgerBackend keeps the persisted entries in an embedded badger database.
type BadgerBackend struct {
	db *badger.DB
}

func OpenBadgerBackend(cfg BadgerConfig) (*BadgerBackend, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(log.WithField("component", "badger"))

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	return &BadgerBackend{db: db}, nil
}

func (bb *BadgerBackend) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := bb.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("badger get %s: %w", key, err)
	}
	return value, nil
}

func (bb *BadgerBackend) Set(_ context.Context, key string, value []byte) error {
	if err := bb.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	}); err != nil {
		return fmt.Errorf("badger set %s: %w", key, err)
	}
	return nil
}

func (bb *BadgerBackend) Delete(_ context.Context, key string) error {
	if err := bb.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	}); err != nil {
		return fmt.Errorf("badger delete %s: %w", key, err)
	}
	return nil
}

func (bb *BadgerBackend) Close() error {
	return bb.db.Close()
}

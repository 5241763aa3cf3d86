// Package badger stores settings in a Badger key-value database.
package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/matt-wil/masterblog/internal/store"
)

type Store struct {
	db *badger.DB
}

// Open opens (or creates) a Badger database in dir. An empty dir keeps
// everything in memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func settingKey(owner, key string) []byte {
	return []byte("setting/" + owner + "/" + key)
}

func (s *Store) GetSetting(_ context.Context, owner, key string) (string, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(settingKey(owner, key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", store.ErrNotFound
		}
		return "", err
	}
	return string(value), nil
}

func (s *Store) PutSetting(_ context.Context, owner, key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(settingKey(owner, key), []byte(value))
	})
}

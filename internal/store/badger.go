package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"MarketAdvisor/internal/domain"
)

// Badger persists artifacts in an embedded badger database.
type Badger struct {
	db *badger.DB
}

// BadgerOptions configures OpenBadger.
type BadgerOptions struct {
	Path     string
	InMemory bool
	Logger   badger.Logger
}

// OpenBadger opens (or creates) the database at opts.Path.
func OpenBadger(opts BadgerOptions) (*Badger, error) {
	var bo badger.Options
	if opts.InMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create badger dir: %w", err)
		}
		bo = badger.DefaultOptions(opts.Path)
	}
	bo = bo.WithLogger(opts.Logger)

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

// Put writes the artifact under key, replacing any previous value.
func (b *Badger) Put(_ context.Context, key string, artifact domain.Artifact) error {
	raw, err := encode(artifact)
	if err != nil {
		return err
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	}); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get reads the artifact stored under key.
func (b *Badger) Get(_ context.Context, key string) (domain.Artifact, error) {
	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Artifact{}, notFound(key)
	}
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("get %s: %w", key, err)
	}
	return decode(raw)
}

// List iterates keys under prefix in lexical order.
func (b *Badger) List(_ context.Context, prefix string) ([]domain.Artifact, error) {
	var out []domain.Artifact
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			a, err := decode(raw)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return out, nil
}

// Close flushes and closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

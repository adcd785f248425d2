package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

// Durable storage keys.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// TokenStore persists the token pair between process runs.
type TokenStore interface {
	Load(ctx context.Context) (Tokens, error)
	Save(ctx context.Context, tokens Tokens) error
	Clear(ctx context.Context) error
	Close() error
}

type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens Tokens
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (m *MemoryTokenStore) Load(context.Context) (Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens, nil
}

func (m *MemoryTokenStore) Save(_ context.Context, tokens Tokens) error {
	m.mu.Lock()
	m.tokens = tokens
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokenStore) Clear(context.Context) error {
	m.mu.Lock()
	m.tokens = Tokens{}
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokenStore) Close() error { return nil }

// BadgerTokenStore keeps tokens in an embedded Badger database.
type BadgerTokenStore struct {
	db *badger.DB
}

// OpenBadgerTokenStore opens (or creates) the database in dir. An empty
// dir opens an in-memory database.
func OpenBadgerTokenStore(dir string) (*BadgerTokenStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	return &BadgerTokenStore{db: db}, nil
}

func (b *BadgerTokenStore) Load(context.Context) (Tokens, error) {
	var t Tokens
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		if t.Access, err = getString(txn, AccessTokenKey); err != nil {
			return err
		}
		t.Refresh, err = getString(txn, RefreshTokenKey)
		return err
	})
	if err != nil {
		return Tokens{}, fmt.Errorf("load tokens: %w", err)
	}
	return t, nil
}

func getString(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var out string
	err = item.Value(func(val []byte) error {
		out = string(val)
		return nil
	})
	return out, err
}

func (b *BadgerTokenStore) Save(_ context.Context, tokens Tokens) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(AccessTokenKey), []byte(tokens.Access)); err != nil {
			return err
		}
		return txn.Set([]byte(RefreshTokenKey), []byte(tokens.Refresh))
	})
	if err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	return nil
}

func (b *BadgerTokenStore) Clear(context.Context) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(AccessTokenKey)); err != nil {
			return err
		}
		return txn.Delete([]byte(RefreshTokenKey))
	})
	if err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

func (b *BadgerTokenStore) Close() error {
	return b.db.Close()
}

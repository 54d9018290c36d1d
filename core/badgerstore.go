package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	conflictPrefix = "conflict:"
	quarantineDir  = "quarantine"
)

// Conflict is a pair of chains that could not be reconciled.
type Conflict struct {
	Key    string    `json:"-"`
	At     time.Time `json:"at"`
	Cause  string    `json:"cause"`
	Local  []*Block  `json:"local"`
	Remote []*Block  `json:"remote"`
}

// QuarantineStore keeps irreconcilable chains for the operator. It is not used
// to restore the ledger.
type QuarantineStore struct {
	db *badger.DB

	mu   sync.Mutex
	last int64
}

// OpenQuarantineStore opens the store of owner under dataDir/quarantine/owner.
// Badger locks its directory, so nodes sharing a data directory each need
// their own owner. An empty dataDir opens an in-memory store.
func OpenQuarantineStore(dataDir, owner string) (*QuarantineStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	if dataDir != "" {
		if owner == "" || filepath.Base(owner) != owner {
			return nil, fmt.Errorf("open quarantine store: invalid owner %q", owner)
		}
		opts = badger.DefaultOptions(filepath.Join(dataDir, quarantineDir, owner))
	}
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open quarantine store: %w", err)
	}
	return &QuarantineStore{db: db}, nil
}

// QuarantineOwners lists the owners with a store under dataDir, sorted.
func QuarantineOwners(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dataDir, quarantineDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var owners []string
	for _, e := range entries {
		if e.IsDir() {
			owners = append(owners, e.Name())
		}
	}
	return owners, nil
}

// SaveConflict stores both chains and the reason they were rejected. It
// returns the key of the new record.
func (s *QuarantineStore) SaveConflict(local, remote []*Block, cause error) (string, error) {
	now := time.Now()
	c := Conflict{At: now, Local: local, Remote: remote}
	if cause != nil {
		c.Cause = cause.Error()
	}
	val, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	key := conflictPrefix + strconv.FormatInt(s.nextStamp(now), 10)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), val)
	})
	if err != nil {
		return "", fmt.Errorf("save conflict: %w", err)
	}
	return key, nil
}

// Conflicts returns every stored conflict, oldest first.
func (s *QuarantineStore) Conflicts() ([]Conflict, error) {
	var out []Conflict
	prefix := []byte(conflictPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var c Conflict
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			})
			if err != nil {
				return err
			}
			c.Key = string(item.KeyCopy(nil))
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// nextStamp keeps keys strictly increasing when the clock does not advance.
func (s *QuarantineStore) nextStamp(now time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := now.UnixNano()
	if n <= s.last {
		n = s.last + 1
	}
	s.last = n
	return n
}

func (s *QuarantineStore) Close() error {
	return s.db.Close()
}

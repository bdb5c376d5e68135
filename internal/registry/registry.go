// Package registry persists instance records in an embedded Badger store.
// Records are stored as JSON blobs keyed by instance name, alongside a
// single pointer naming the active instance.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/vastctl/vastctl/internal/instance"
)

// Sentinel errors for registry operations.
var (
	ErrNotFound = errors.New("not found in registry")
	ErrNoActive = errors.New("no active instance set")
)

const (
	instancePrefix = "instance/"
	activeKey      = "meta/active"
)

// Store is a Badger-backed instance registry.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) the registry at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(filepath.Clean(path))
	opts.Logger = nil // badger's own logging is too chatty for a CLI
	opts = opts.WithValueLogFileSize(1 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func instanceKey(name string) []byte {
	return []byte(instancePrefix + name)
}

// Put adds or replaces an instance record.
func (s *Store) Put(inst *instance.Instance) error {
	if inst.Name == "" {
		return errors.New("instance name is required")
	}

	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("encode instance %s: %w", inst.Name, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(instanceKey(inst.Name), data)
	})
	if err != nil {
		return fmt.Errorf("store instance %s: %w", inst.Name, err)
	}
	return nil
}

// Get returns the instance with the given name.
func (s *Store) Get(name string) (*instance.Instance, error) {
	var inst instance.Instance
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(instanceKey(name))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("instance %s: %w", name, ErrNotFound)
			}
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &inst)
		})
	})
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// Exists reports whether a record with the given name is present.
func (s *Store) Exists(name string) bool {
	_, err := s.Get(name)
	return err == nil
}

// Remove deletes an instance record. If the removed instance was active,
// the active pointer is cleared in the same transaction.
func (s *Store) Remove(name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(instanceKey(name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("instance %s: %w", name, ErrNotFound)
			}
			return err
		}
		if err := txn.Delete(instanceKey(name)); err != nil {
			return err
		}

		item, err := txn.Get([]byte(activeKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		var active string
		if err := item.Value(func(v []byte) error {
			active = string(v)
			return nil
		}); err != nil {
			return err
		}
		if active == name {
			return txn.Delete([]byte(activeKey))
		}
		return nil
	})
}

// List returns instances matching the filter, newest first.
func (s *Store) List(filter instance.ListFilter) ([]*instance.Instance, error) {
	var instances []*instance.Instance

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(instancePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var inst instance.Instance
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &inst)
			})
			if err != nil {
				return err
			}
			if inst.Matches(filter) {
				instances = append(instances, &inst)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}

	sort.SliceStable(instances, func(i, j int) bool {
		return instances[i].CreatedAt.After(instances[j].CreatedAt)
	})
	return instances, nil
}

// FindByRemoteID returns the instance tracking the given remote ID, if any.
func (s *Store) FindByRemoteID(remoteID int64) (*instance.Instance, error) {
	all, err := s.List(instance.ListFilter{})
	if err != nil {
		return nil, err
	}
	for _, inst := range all {
		if inst.RemoteID == remoteID {
			return inst, nil
		}
	}
	return nil, fmt.Errorf("remote id %d: %w", remoteID, ErrNotFound)
}

// SetActive marks the named instance as active. The instance must exist.
func (s *Store) SetActive(name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(instanceKey(name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("instance %s: %w", name, ErrNotFound)
			}
			return err
		}
		return txn.Set([]byte(activeKey), []byte(name))
	})
}

// ActiveName returns the name of the active instance.
func (s *Store) ActiveName() (string, error) {
	var name string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(activeKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNoActive
			}
			return err
		}
		return item.Value(func(v []byte) error {
			name = strings.TrimSpace(string(v))
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// Active returns the active instance record.
func (s *Store) Active() (*instance.Instance, error) {
	name, err := s.ActiveName()
	if err != nil {
		return nil, err
	}
	return s.Get(name)
}

// ClearActive removes the active pointer. Clearing when none is set is not
// an error.
func (s *Store) ClearActive() error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(activeKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Projects returns the distinct project names across all records, sorted.
func (s *Store) Projects() ([]string, error) {
	all, err := s.List(instance.ListFilter{})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, inst := range all {
		project := inst.Project
		if project == "" {
			project = "default"
		}
		seen[project] = struct{}{}
	}

	projects := make([]string, 0, len(seen))
	for p := range seen {
		projects = append(projects, p)
	}
	sort.Strings(projects)
	return projects, nil
}

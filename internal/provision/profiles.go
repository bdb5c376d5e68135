package provision

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ErrProfileNotFound is returned when a named profile does not exist.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is a named overlay on the base provisioning config. A profile
// can swap the machine image and override any provisioning field.
type Profile struct {
	Description  string `mapstructure:"description" yaml:"description,omitempty" json:"description,omitempty"`
	Image        string `mapstructure:"image" yaml:"image,omitempty" json:"image,omitempty"`
	Provisioning Config `mapstructure:"provisioning" yaml:"provisioning,omitempty" json:"provisioning,omitempty"`
}

// profileCache is the on-disk format for cloud-synced profiles.
type profileCache struct {
	Profiles map[string]Profile `json:"profiles"`
	SyncedAt time.Time          `json:"synced_at"`
}

// ProfileStore resolves profiles from local configuration and a cloud
// cache file. Local profiles shadow cloud ones with the same name.
type ProfileStore struct {
	local     map[string]Profile
	cachePath string
}

// NewProfileStore creates a store over locally configured profiles and the
// cloud cache at cachePath.
func NewProfileStore(local map[string]Profile, cachePath string) *ProfileStore {
	return &ProfileStore{local: local, cachePath: cachePath}
}

func (s *ProfileStore) loadCache() map[string]Profile {
	data, err := os.ReadFile(s.cachePath)
	if err != nil {
		return nil
	}
	var cache profileCache
	if err := json.Unmarshal(data, &cache); err != nil {
		// a corrupt cache is treated as absent; the next sync rewrites it
		return nil
	}
	return cache.Profiles
}

// SaveCache persists cloud profiles to the cache file.
func (s *ProfileStore) SaveCache(profiles map[string]Profile) error {
	if err := os.MkdirAll(filepath.Dir(s.cachePath), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.MarshalIndent(profileCache{Profiles: profiles, SyncedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile cache: %w", err)
	}
	if err := os.WriteFile(s.cachePath, data, 0o644); err != nil {
		return fmt.Errorf("write profile cache: %w", err)
	}
	return nil
}

// List returns every available profile name, local and cached, sorted.
func (s *ProfileStore) List() []string {
	seen := make(map[string]struct{})
	for name := range s.local {
		seen[name] = struct{}{}
	}
	for name := range s.loadCache() {
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named profile, preferring local definitions over the
// cloud cache.
func (s *ProfileStore) Get(name string) (*Profile, error) {
	if p, ok := s.local[name]; ok {
		return &p, nil
	}
	if p, ok := s.loadCache()[name]; ok {
		return &p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// Effective overlays the named profile onto the base provisioning config.
// An empty name returns the base unchanged.
func (s *ProfileStore) Effective(base Config, name string) (Config, error) {
	if name == "" {
		return base, nil
	}
	profile, err := s.Get(name)
	if err != nil {
		return Config{}, err
	}
	return Merge(base, profile.Provisioning), nil
}

// Image returns the image override from the named profile, or "" when the
// profile does not specify one or the name is empty.
func (s *ProfileStore) Image(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	profile, err := s.Get(name)
	if err != nil {
		return "", err
	}
	return profile.Image, nil
}

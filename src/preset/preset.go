// Package preset manages the user's whitelist and blacklist presets:
// in-memory CRUD with bounded counts and JSON persistence.
package preset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"relic-keeper/src/vocab"
)

// Kind distinguishes preset roles.
type Kind string

const (
	KindWhitelist Kind = "whitelist"
	KindBlacklist Kind = "blacklist"
)

// MaxDedicated bounds dedicated presets per mode.
const MaxDedicated = 20

var (
	ErrPresetLimit            = errors.New("dedicated preset limit reached")
	ErrPresetNotFound         = errors.New("preset not found")
	ErrGeneralPresetImmutable = errors.New("general preset cannot be deleted")
)

// Preset is one named affix set. The general preset of each mode
// always exists and can only be edited, never deleted.
type Preset struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Kind      Kind     `json:"kind"`
	Affixes   []string `json:"affixes"`
	IsGeneral bool     `json:"is_general"`
	IsActive  bool     `json:"is_active"`
}

// document is the persisted shape of the whole preset store.
type document struct {
	Version            string             `json:"version"`
	NormalGeneral      *Preset            `json:"normal_general"`
	DeepnightGeneral   *Preset            `json:"deepnight_general"`
	NormalDedicated    map[string]*Preset `json:"normal_dedicated"`
	DeepnightDedicated map[string]*Preset `json:"deepnight_dedicated"`
	DeepnightBlacklist *Preset            `json:"deepnight_blacklist"`
}

// Store owns the preset document. All mutating operations persist
// immediately; constraint violations return typed errors and never
// truncate silently.
type Store struct {
	mu   sync.Mutex
	path string
	doc  document
}

// Open loads presets from path, initializing defaults when the file
// does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s.doc); err != nil {
			return nil, fmt.Errorf("parse presets: %w", err)
		}
		s.fillDefaults()
	case os.IsNotExist(err):
		s.fillDefaults()
		if err := s.persist(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("read presets: %w", err)
	}
	return s, nil
}

func (s *Store) fillDefaults() {
	if s.doc.Version == "" {
		s.doc.Version = "1.0"
	}
	if s.doc.NormalGeneral == nil {
		s.doc.NormalGeneral = &Preset{
			ID: "normal_general", Name: "普通通用预设", Kind: KindWhitelist,
			IsGeneral: true, IsActive: true,
		}
	}
	if s.doc.DeepnightGeneral == nil {
		s.doc.DeepnightGeneral = &Preset{
			ID: "deepnight_general", Name: "深夜通用预设", Kind: KindWhitelist,
			IsGeneral: true, IsActive: true,
		}
	}
	if s.doc.DeepnightBlacklist == nil {
		s.doc.DeepnightBlacklist = &Preset{
			ID: "deepnight_blacklist", Name: "深夜黑名单", Kind: KindBlacklist,
			IsActive: true,
		}
	}
	if s.doc.NormalDedicated == nil {
		s.doc.NormalDedicated = make(map[string]*Preset)
	}
	if s.doc.DeepnightDedicated == nil {
		s.doc.DeepnightDedicated = make(map[string]*Preset)
	}
}

func (s *Store) persist() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create preset dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode presets: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write presets: %w", err)
	}
	return nil
}

func (s *Store) dedicated(mode vocab.Mode) map[string]*Preset {
	if mode == vocab.ModeDeepnight {
		return s.doc.DeepnightDedicated
	}
	return s.doc.NormalDedicated
}

// General returns the mode's general preset. It always exists.
func (s *Store) General(mode vocab.Mode) *Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == vocab.ModeDeepnight {
		return clonePreset(s.doc.DeepnightGeneral)
	}
	return clonePreset(s.doc.NormalGeneral)
}

// Blacklist returns the deepnight blacklist preset.
func (s *Store) Blacklist() *Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePreset(s.doc.DeepnightBlacklist)
}

// ActiveDedicated returns the active dedicated presets of a mode in a
// deterministic (name, then id) order.
func (s *Store) ActiveDedicated(mode vocab.Mode) []*Preset {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Preset
	for _, p := range s.dedicated(mode) {
		if p.IsActive {
			out = append(out, clonePreset(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CreateDedicated adds a dedicated whitelist preset and returns its id.
func (s *Store) CreateDedicated(mode vocab.Mode, name string, affixes []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	presets := s.dedicated(mode)
	if len(presets) >= MaxDedicated {
		return "", fmt.Errorf("%w: %d presets in mode %s", ErrPresetLimit, len(presets), mode)
	}

	id := uuid.NewString()
	presets[id] = &Preset{
		ID: id, Name: name, Kind: KindWhitelist,
		Affixes: append([]string(nil), affixes...),
		IsActive: true,
	}
	return id, s.persist()
}

// UpdateDedicated replaces a dedicated preset's name and/or affixes.
// Nil arguments leave the corresponding field untouched.
func (s *Store) UpdateDedicated(mode vocab.Mode, id string, name *string, affixes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.dedicated(mode)[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPresetNotFound, id)
	}
	if name != nil {
		p.Name = *name
	}
	if affixes != nil {
		p.Affixes = append([]string(nil), affixes...)
	}
	return s.persist()
}

// DeleteDedicated removes a dedicated preset.
func (s *Store) DeleteDedicated(mode vocab.Mode, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	presets := s.dedicated(mode)
	if _, ok := presets[id]; !ok {
		// Attempting to delete a general preset by id is a caller bug
		// worth a distinct error.
		if id == s.doc.NormalGeneral.ID || id == s.doc.DeepnightGeneral.ID {
			return ErrGeneralPresetImmutable
		}
		return fmt.Errorf("%w: %s", ErrPresetNotFound, id)
	}
	delete(presets, id)
	return s.persist()
}

// ToggleActive flips a dedicated preset's active state.
func (s *Store) ToggleActive(mode vocab.Mode, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.dedicated(mode)[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPresetNotFound, id)
	}
	p.IsActive = !p.IsActive
	return s.persist()
}

// UpdateGeneral replaces the general preset's affix set.
func (s *Store) UpdateGeneral(mode vocab.Mode, affixes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.doc.NormalGeneral
	if mode == vocab.ModeDeepnight {
		p = s.doc.DeepnightGeneral
	}
	p.Affixes = append([]string(nil), affixes...)
	return s.persist()
}

// UpdateBlacklist replaces the deepnight blacklist's affix set.
func (s *Store) UpdateBlacklist(affixes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.DeepnightBlacklist.Affixes = append([]string(nil), affixes...)
	return s.persist()
}

func clonePreset(p *Preset) *Preset {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Affixes = append([]string(nil), p.Affixes...)
	return &cp
}

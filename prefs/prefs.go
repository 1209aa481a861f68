// Package prefs persists the player preferences outside of the
// simulation.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

type Prefs struct {
	PlayerName string `yaml:"playerName" json:"playerName"`
	Token      string `yaml:"token,omitempty" json:"-"`
}

type Store interface {
	Load() (Prefs, error)
	Save(p Prefs) error
}

// File is a Store backed by a YAML file. A missing file reads as empty
// preferences.
type File struct {
	Path string
	mu   sync.Mutex
}

func NewFile(path string) *File {
	return &File{Path: path}
}

func (f *File) Load() (Prefs, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var p Prefs
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("reading preferences %s: %w", f.Path, err)
	}
	return p, nil
}

func (f *File) Save(p Prefs) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return err
	}
	return os.WriteFile(f.Path, data, 0600)
}

// Memory is a Store kept in memory.
type Memory struct {
	mu    sync.Mutex
	prefs Prefs
}

func (m *Memory) Load() (Prefs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs, nil
}

func (m *Memory) Save(p Prefs) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs = p
	return nil
}

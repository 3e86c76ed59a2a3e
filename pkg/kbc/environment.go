// Package kbc implements the data folder contract the crawler runs in:
//
//	<data>/config.json
//	<data>/in/state.json
//	<data>/out/state.json
//	<data>/out/tables/   (browser download folder)
//	<data>/out/files/    (exported artifacts with .manifest side files)
package kbc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configFileName = "config.json"
	stateFileName  = "state.json"
)

type Environment struct {
	DataDir string
	RunID   string
}

// NewEnvironment makes sure the output folders exist.
func NewEnvironment(dataDir, runID string) (*Environment, error) {
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("resolving data dir %q: %w", dataDir, err)
	}
	env := &Environment{DataDir: abs, RunID: runID}
	for _, dir := range []string{env.TablesOutPath(), env.FilesOutPath()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating output dir %q: %w", dir, err)
		}
	}
	return env, nil
}

func (e *Environment) ConfigPath() string {
	return filepath.Join(e.DataDir, configFileName)
}

func (e *Environment) InStatePath() string {
	return filepath.Join(e.DataDir, "in", stateFileName)
}

func (e *Environment) OutStatePath() string {
	return filepath.Join(e.DataDir, "out", stateFileName)
}

func (e *Environment) TablesOutPath() string {
	return filepath.Join(e.DataDir, "out", "tables")
}

func (e *Environment) FilesOutPath() string {
	return filepath.Join(e.DataDir, "out", "files")
}

// State is the persisted run state. Cookies are kept opaque.
type State struct {
	Cookies []map[string]any `json:"cookies"`
}

// ReadState returns an empty state when no state file was provided.
func (e *Environment) ReadState() (*State, error) {
	data, err := os.ReadFile(e.InStatePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("reading state file %q: %w", e.InStatePath(), err)
	}

	var state State
	if len(data) == 0 {
		return &state, nil
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state file %q: %w", e.InStatePath(), err)
	}
	return &state, nil
}

func (e *Environment) WriteState(state *State) error {
	if state.Cookies == nil {
		state.Cookies = []map[string]any{}
	}
	return writeJSON(e.OutStatePath(), state)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating dir for %q: %w", path, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %q: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}

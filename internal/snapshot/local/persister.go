// Package local persists snapshots to the local filesystem.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/columbiacals/menud/internal/menu"
)

const snapshotFile = "snapshot.json"

// Config captures the parameters for the local filesystem persister.
type Config struct {
	// BaseDir is the directory where the snapshot file lives.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Persister writes the snapshot to a JSON file on the local filesystem.
type Persister struct {
	baseDir string
}

// New creates a local filesystem-backed persister.
func New(cfg Config) (*Persister, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	return &Persister{baseDir: cfg.BaseDir}, nil
}

// Save writes the snapshot atomically via a temp file and rename, so a
// crash mid-write never leaves a truncated snapshot behind.
func (p *Persister) Save(_ context.Context, snap menu.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(p.baseDir, snapshotFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        //nolint:errcheck // best effort on the failure path
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(p.baseDir, snapshotFile)); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("rename snapshot file: %w", err)
	}
	return nil
}

// Load reads the snapshot back. A missing file maps to menu.ErrNoSnapshot.
func (p *Persister) Load(context.Context) (menu.Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(p.baseDir, snapshotFile))
	if err != nil {
		if os.IsNotExist(err) {
			return menu.Snapshot{}, menu.ErrNoSnapshot
		}
		return menu.Snapshot{}, fmt.Errorf("read snapshot file: %w", err)
	}
	var snap menu.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return menu.Snapshot{}, fmt.Errorf("decode snapshot file: %w", err)
	}
	return snap, nil
}

// Package gcs persists snapshots in a Google Cloud Storage object.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/columbiacals/menud/internal/menu"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Object string
}

// Persister writes the snapshot to a fixed object in a GCS bucket.
type Persister struct {
	client *storage.Client
	bucket string
	object string
}

// New creates a GCS-backed persister.
func New(client *storage.Client, cfg Config) (*Persister, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	object := cfg.Object
	if object == "" {
		object = "snapshot.json"
	}
	return &Persister{
		client: client,
		bucket: cfg.Bucket,
		object: object,
	}, nil
}

// Save uploads the snapshot, replacing the previous object. GCS object
// writes are atomic, so readers never see a partial snapshot.
func (p *Persister) Save(ctx context.Context, snap menu.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	writer := p.client.Bucket(p.bucket).Object(p.object).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// Load downloads and decodes the snapshot object. A missing object maps to
// menu.ErrNoSnapshot.
func (p *Persister) Load(ctx context.Context) (menu.Snapshot, error) {
	reader, err := p.client.Bucket(p.bucket).Object(p.object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return menu.Snapshot{}, menu.ErrNoSnapshot
		}
		return menu.Snapshot{}, fmt.Errorf("open object: %w", err)
	}
	defer reader.Close() //nolint:errcheck // read-only body

	data, err := io.ReadAll(reader)
	if err != nil {
		return menu.Snapshot{}, fmt.Errorf("read object: %w", err)
	}
	var snap menu.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return menu.Snapshot{}, fmt.Errorf("decode snapshot object: %w", err)
	}
	return snap, nil
}

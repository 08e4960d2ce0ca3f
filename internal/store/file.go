package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// fileBackend keeps the blacklist in one JSON document. Writes go to a
// temporary file in the same directory and are renamed into place.
type fileBackend struct {
	path string
}

type fileDoc struct {
	Version   int      `json:"version"`
	UpdatedAt string   `json:"updated_at"`
	SSIDs     []string `json:"ssids"`
}

const fileVersion = 1

func openFile(cfg Config) (*fileBackend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileBackend{path: path}, nil
}

func (f *fileBackend) Load(ctx context.Context) ([]string, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc fileDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	if doc.Version > fileVersion {
		return nil, fmt.Errorf("%s: unsupported version %d", f.path, doc.Version)
	}
	return doc.SSIDs, nil
}

func (f *fileBackend) Save(ctx context.Context, ssids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ssids == nil {
		ssids = []string{}
	}
	b, err := json.MarshalIndent(fileDoc{
		Version:   fileVersion,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		SSIDs:     ssids,
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (f *fileBackend) Close() error {
	return nil
}

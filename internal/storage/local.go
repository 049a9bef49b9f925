package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes resumes under a base directory. References are
// "local://<key>" so they survive a change of base directory.
type LocalStore struct {
	baseDir string
}

const localScheme = "local://"

// NewLocalStore creates the base directory if needed.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// Put writes body to key.
func (l *LocalStore) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	path, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dirs: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return localScheme + key, nil
}

// Owns reports whether ref is a local reference below KeyPrefix.
func (l *LocalStore) Owns(ref string) bool {
	key, ok := strings.CutPrefix(ref, localScheme)
	return ok && ownedKey(key)
}

// Get reads a reference returned by Put.
func (l *LocalStore) Get(_ context.Context, ref string) ([]byte, error) {
	if !l.Owns(ref) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReference, ref)
	}
	key := strings.TrimPrefix(ref, localScheme)
	path, err := l.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// path resolves key inside baseDir, rejecting keys that escape it.
func (l *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("%w: empty key", ErrUnknownReference)
	}
	return filepath.Join(l.baseDir, clean), nil
}

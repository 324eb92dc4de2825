package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type Local struct {
	dir     string
	baseURL string
}

func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image dir: %w", err)
	}
	return &Local{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (l *Local) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(l.path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (l *Local) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	// rename keeps readers from seeing half-written files
	if err := os.Rename(tmp.Name(), l.path(name)); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return l.Ref(name), nil
}

func (l *Local) Ref(name string) string {
	return l.baseURL + "/" + filepath.Base(name)
}

func (l *Local) path(name string) string {
	return filepath.Join(l.dir, filepath.Base(name))
}

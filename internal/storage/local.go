package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Local stores files below a directory on disk and serves them under a URL prefix.
type Local struct {
	root    string
	baseURL string
}

// NewLocal creates the media root if needed.
func NewLocal(root, baseURL string) (*Local, error) {
	if root == "" {
		root = "media_root"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Local{root: root, baseURL: baseURL}, nil
}

// Root returns the directory files are written to.
func (l *Local) Root() string { return l.root }

func (l *Local) Save(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	target, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		return fmt.Errorf("write file: %w", err)
	}
	return f.Close()
}

func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, string, error) {
	target, err := l.path(key)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, "", err
	}
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return f, contentType, nil
}

// Delete removes the file. Missing files are not an error.
func (l *Local) Delete(_ context.Context, key string) error {
	target, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (l *Local) URL(key string) string {
	return l.baseURL + key
}

func (l *Local) path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(key)), nil
}

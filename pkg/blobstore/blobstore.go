// Package blobstore stores uploaded documents, signatures and call
// transcriptions under the path convention users/{id}/{category}/{filename}.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	ErrBlobNotFound    = errors.New("blob not found")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrMissingFileName = errors.New("file name is required")
	ErrInvalidPath     = errors.New("invalid blob path")
)

// MaxFileSize is the largest accepted upload (20 MB).
const MaxFileSize = 20 * 1024 * 1024

type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// UserPath builds users/{id}/{category}/{filename}, reducing the file name
// to its base name.
func UserPath(userID int64, category, filename string) (string, error) {
	name := sanitizeName(filename)
	if name == "" {
		return "", ErrMissingFileName
	}
	if category == "" || strings.ContainsAny(category, `/\`) || category == ".." {
		return "", fmt.Errorf("%w: category %q", ErrInvalidPath, category)
	}
	return path.Join("users", fmt.Sprint(userID), category, name), nil
}

func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.ReplaceAll(name, " ", "_")
}

// LocalStore keeps blobs on the local filesystem below Root.
type LocalStore struct {
	Root      string
	PublicURL string
}

func NewLocalStore(root, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{Root: root, PublicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	return filepath.Join(s.Root, filepath.FromSlash(clean)), nil
}

// Put writes r to key, refusing anything larger than MaxFileSize. The file
// is written to a temporary name first so readers never see a partial blob.
func (s *LocalStore) Put(_ context.Context, key string, r io.Reader) (string, error) {
	dst, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, MaxFileSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if n > MaxFileSize {
		return "", ErrFileTooLarge
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("failed to move blob into place: %w", err)
	}
	return key, nil
}

func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// URL returns the public address of key, or "" for an empty key.
func (s *LocalStore) URL(key string) string {
	if key == "" {
		return ""
	}
	return s.PublicURL + "/" + strings.TrimLeft(key, "/")
}

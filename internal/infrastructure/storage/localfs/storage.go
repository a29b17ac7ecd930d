// Package localfs stages uploads on local disk and keeps stored files in a
// single directory, named by their file id and extension.
package localfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Storage struct {
	basePath string
	tempPath string
}

// New creates the storage and staging directories when they do not exist yet.
func New(basePath, tempPath string) (*Storage, error) {
	if basePath == "" {
		basePath = "/share/"
	}
	if tempPath == "" {
		tempPath = "temp/"
	}
	for _, dir := range []string{basePath, tempPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return &Storage{basePath: basePath, tempPath: tempPath}, nil
}

func (s *Storage) BasePath() string {
	return s.basePath
}

// Stage copies body into a fresh file of the staging directory.
func (s *Storage) Stage(ctx context.Context, body io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	f, err := os.CreateTemp(s.tempPath, "upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("create staging file: %w", err)
	}
	path := f.Name()

	size, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write staging file: %w", err)
	}
	return path, size, nil
}

// ReadText returns the staged file as text without a leading byte order mark.
// Declared non-UTF-8 encodings are left to the XML parser.
func (s *Storage) ReadText(_ context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read staged file: %w", err)
	}
	return string(bytes.TrimPrefix(raw, utf8BOM)), nil
}

func (s *Storage) Discard(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove staged file: %w", err)
	}
	return nil
}

// Promote moves the staged file into the storage directory under name,
// falling back to copy and remove when the two directories sit on different devices.
func (s *Storage) Promote(_ context.Context, tempPath, name string) error {
	dst, err := s.pathFor(name)
	if err != nil {
		return err
	}
	err = os.Rename(tempPath, dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("move %s to %s: %w", tempPath, dst, err)
	}
	if copyErr := copyFile(tempPath, dst); copyErr != nil {
		return fmt.Errorf("move %s to %s: %w", tempPath, dst, errors.Join(err, copyErr))
	}
	_ = os.Remove(tempPath)
	return nil
}

func (s *Storage) pathFor(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid stored file name %q", name)
	}
	return filepath.Join(s.basePath, name), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

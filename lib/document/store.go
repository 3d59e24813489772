// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"
)

// ErrLocked is returned by OpenStore when another process holds the
// document's lock.
var ErrLocked = errors.New("document: locked by another process")

// StoreOptions configures OpenStore.
type StoreOptions struct {
	// Compression applies to files written by Save.
	Compression Compression
	Logger      *slog.Logger
}

// Store persists one Document to one file. It holds an exclusive
// advisory lock on "<path>.lock" until Close, so two editors cannot
// write the same file.
//
// Save is atomic (temporary file, fsync, rename, fsync of the parent
// directory) and skips the write entirely when the content hash
// matches what is already on disk.
type Store struct {
	path        string
	compression Compression
	logger      *slog.Logger
	lock        *os.File

	mu       sync.Mutex
	lastHash [32]byte
	hashed   bool
	// recompress is set when the loaded file's encoding differs from
	// compression; the next Save rewrites it even if unchanged.
	recompress bool
}

// OpenStore locks path for exclusive use. The file itself need not
// exist yet; its parent directory is created if missing.
func OpenStore(path string, options StoreOptions) (*Store, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("document: creating directory for %s: %w", path, err)
	}

	lock, err := os.OpenFile(path+".lock", os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("document: opening lock file: %w", err)
	}
	if err := unix.Flock(int(lock.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lock.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("document: locking %s: %w", path, err)
	}

	return &Store{
		path:        path,
		compression: options.Compression,
		logger:      logger,
		lock:        lock,
	}, nil
}

// Path returns the document file path.
func (s *Store) Path() string { return s.path }

// Load reads the document. A missing file yields an empty document.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("document: reading %s: %w", s.path, err)
	}

	plain, compression, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("document: %s: %w", s.path, err)
	}
	doc, err := Parse(plain)
	if err != nil {
		return nil, fmt.Errorf("document: %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.lastHash = blake3.Sum256(doc.Bytes())
	s.hashed = true
	s.recompress = compression != s.compression
	s.mu.Unlock()

	s.logger.Debug("document loaded",
		"path", s.path,
		"bytes", len(data),
		"compression", compression.String(),
	)
	return doc, nil
}

// Save writes doc if its content differs from the last load or save,
// or if the loaded file was encoded with a different compression than
// the store's. It reports whether the file was written.
func (s *Store) Save(doc *Document) (bool, error) {
	data := doc.Bytes()
	sum := blake3.Sum256(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hashed && sum == s.lastHash && !s.recompress {
		return false, nil
	}

	encoded, err := encode(data, s.compression)
	if err != nil {
		return false, fmt.Errorf("document: encoding %s: %w", s.path, err)
	}
	if err := writeAtomic(s.path, encoded); err != nil {
		return false, err
	}
	s.lastHash, s.hashed, s.recompress = sum, true, false

	s.logger.Debug("document saved",
		"path", s.path,
		"bytes", len(encoded),
		"compression", s.compression.String(),
	)
	return true, nil
}

// Close releases the lock.
func (s *Store) Close() error {
	if err := unix.Flock(int(s.lock.Fd()), unix.LOCK_UN); err != nil {
		s.lock.Close()
		return fmt.Errorf("document: unlocking %s: %w", s.path, err)
	}
	return s.lock.Close()
}

// writeAtomic replaces path with data so readers never see a partial
// file.
func writeAtomic(path string, data []byte) error {
	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("document: creating temporary file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("document: writing temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("document: syncing temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("document: closing temporary file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("document: renaming into place: %w", err)
	}

	if directory, err := os.Open(filepath.Dir(path)); err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"webmail/utils"
)

// ErrInvalidFilename is returned for names that would escape the user directory
var ErrInvalidFilename = errors.New("invalid file name")

// StoredFile describes a file saved in a user's storage folder
type StoredFile struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
}

// FileStore keeps attachment files under <root>/user_<id>/ and profile
// pictures under <root>/profiles/
type FileStore struct {
	root     string
	mu       sync.RWMutex
	usage    *utils.MemoryCache
	usageTTL time.Duration
	now      func() time.Time
}

// NewFileStore creates the storage root and the profiles directory
func NewFileStore(root string, usageTTL time.Duration) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(root, profilesDir), 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %v", err)
	}
	return &FileStore{
		root:     root,
		usage:    utils.NewMemoryCache(time.Minute),
		usageTTL: usageTTL,
		now:      time.Now,
	}, nil
}

// Close stops the usage cache
func (s *FileStore) Close() {
	s.usage.Close()
}

// UserDir returns the storage folder of a user
func (s *FileStore) UserDir(userID int64) string {
	return filepath.Join(s.root, "user_"+strconv.FormatInt(userID, 10))
}

// CreateUserDir creates the storage folder of a user
func (s *FileStore) CreateUserDir(userID int64) error {
	if err := os.MkdirAll(s.UserDir(userID), 0700); err != nil {
		return fmt.Errorf("failed to create storage folder for user %d: %v", userID, err)
	}
	return nil
}

// userPath resolves a file name inside the user's folder
func (s *FileStore) userPath(userID int64, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", ErrInvalidFilename
	}
	return filepath.Join(s.UserDir(userID), name), nil
}

// cleanName reduces an uploaded file name to a safe base name
func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "." || name == "/" || name == ".." || name == "" {
		return "file"
	}
	return name
}

// SaveFile stores data as <unixmillis>_<name> in the user's folder
func (s *FileStore) SaveFile(userID int64, name string, data []byte) (*StoredFile, error) {
	if err := s.CreateUserDir(userID); err != nil {
		return nil, err
	}

	stored := fmt.Sprintf("%d_%s", s.now().UnixMilli(), cleanName(name))
	path, err := s.userPath(userID, stored)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to save file %s for user %d: %v", stored, userID, err)
	}
	s.invalidateUsage(userID)

	return &StoredFile{Filename: cleanName(name), Path: stored, Size: int64(len(data))}, nil
}

// DeleteFile removes a stored file. It reports false when nothing was there.
func (s *FileStore) DeleteFile(userID int64, name string) (bool, error) {
	path, err := s.userPath(userID, name)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	s.invalidateUsage(userID)
	return true, nil
}

// FindFile returns the stored name for either an exact stored name or the
// original upload name behind a timestamp prefix
func (s *FileStore) FindFile(userID int64, name string) (string, bool) {
	if s.Exists(userID, name) {
		return name, true
	}
	entries, err := os.ReadDir(s.UserDir(userID))
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), "_"+name) {
			return entry.Name(), true
		}
	}
	return "", false
}

// Exists reports whether a stored file exists
func (s *FileStore) Exists(userID int64, name string) bool {
	path, err := s.userPath(userID, name)
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ReadFile returns the contents of a stored file
func (s *FileStore) ReadFile(userID int64, name string) ([]byte, error) {
	path, err := s.userPath(userID, name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func usageKey(userID int64) string {
	return "usage:" + strconv.FormatInt(userID, 10)
}

func (s *FileStore) invalidateUsage(userID int64) {
	s.usage.Delete(usageKey(userID))
}

// Usage sums the sizes of the regular files in the user's folder. A missing
// folder counts as zero.
func (s *FileStore) Usage(userID int64) (int64, error) {
	if cached, ok := s.usage.Get(usageKey(userID)); ok {
		return cached.(int64), nil
	}

	s.mu.RLock()
	entries, err := os.ReadDir(s.UserDir(userID))
	if err != nil {
		s.mu.RUnlock()
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read storage folder for user %d: %v", userID, err)
	}

	var total int64
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			utils.Log.Warn("Could not stat file %s for user %d: %v", entry.Name(), userID, err)
			continue
		}
		total += info.Size()
	}
	s.mu.RUnlock()

	s.usage.Set(usageKey(userID), total, s.usageTTL)
	return total, nil
}

// CanReceive reports whether the user is still below their quota
func (s *FileStore) CanReceive(userID, quota int64) (bool, error) {
	used, err := s.Usage(userID)
	if err != nil {
		return false, err
	}
	return used < quota, nil
}

// CleanupFiles removes the listed stored files, logging individual failures
func (s *FileStore) CleanupFiles(userID int64, paths []string) error {
	var failed int
	for _, p := range paths {
		if _, err := s.DeleteFile(userID, filepath.Base(p)); err != nil {
			utils.Log.Warn("Failed to cleanup file %s for user %d: %v", p, userID, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be removed", failed, len(paths))
	}
	return nil
}

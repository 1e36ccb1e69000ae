package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"webmail/utils"
)

const (
	profilesDir = "profiles"

	// MaxProfilePictureSize is the upload limit for profile pictures
	MaxProfilePictureSize = 5 * 1024 * 1024
)

var (
	ErrImageTooLarge   = errors.New("image too large, maximum size is 5MB")
	ErrInvalidImage    = errors.New("invalid image format, allowed: JPG, PNG, GIF, WebP")
	ErrNotPictureOwner = errors.New("profile picture belongs to another user")
)

func (s *FileStore) profilePath(name string) string {
	return filepath.Join(s.root, profilesDir, name)
}

func profilePrefix(userID int64) string {
	return strconv.FormatInt(userID, 10) + "_"
}

// SaveProfilePicture validates, resizes and stores a profile picture as
// <userId>_<unixmillis>.<ext>, replacing the user's previous pictures. It
// returns the new file name.
func (s *FileStore) SaveProfilePicture(userID int64, data []byte, contentType string) (string, error) {
	if !utils.IsImage(contentType) {
		return "", ErrInvalidImage
	}
	if len(data) > MaxProfilePictureSize {
		return "", ErrImageTooLarge
	}

	optimized, ext, err := utils.OptimizeImage(data, utils.ProfilePictureMaxWidth)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if err := s.deleteProfilePictures(userID); err != nil {
		utils.Log.Warn("Failed to remove old profile pictures of user %d: %v", userID, err)
	}

	name := fmt.Sprintf("%s%d.%s", profilePrefix(userID), s.now().UnixMilli(), ext)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.profilePath(name), optimized, 0600); err != nil {
		return "", fmt.Errorf("failed to save profile picture: %v", err)
	}
	utils.Log.Debug("Saved profile picture %s (%d bytes)", name, len(optimized))
	return name, nil
}

// DeleteProfilePicture removes one of the user's pictures
func (s *FileStore) DeleteProfilePicture(userID int64, name string) error {
	if err := checkPictureName(userID, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.profilePath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ReadProfilePicture returns a picture owned by the user
func (s *FileStore) ReadProfilePicture(userID int64, name string) ([]byte, error) {
	if err := checkPictureName(userID, name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(s.profilePath(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func checkPictureName(userID int64, name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return ErrInvalidFilename
	}
	if !strings.HasPrefix(name, profilePrefix(userID)) {
		return ErrNotPictureOwner
	}
	return nil
}

func (s *FileStore) deleteProfilePictures(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(filepath.Join(s.root, profilesDir))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasPrefix(entry.Name(), profilePrefix(userID)) {
			if err := os.Remove(s.profilePath(entry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

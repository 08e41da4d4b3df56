package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const MaxAvatarSize = 2 << 20 // 2 MB

var (
	ErrFileTooLarge   = errors.New("file exceeds maximum size")
	ErrBadContentType = errors.New("file type not allowed")
)

var allowedAvatarExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// AvatarStore writes uploaded avatar images under a local directory with
// random names, so user-supplied filenames never touch the filesystem.
type AvatarStore struct {
	dir string
}

func NewAvatarStore(dir string) (*AvatarStore, error) {
	avatarDir := filepath.Join(dir, "avatars")
	if err := os.MkdirAll(avatarDir, 0o755); err != nil {
		return nil, err
	}
	return &AvatarStore{dir: avatarDir}, nil
}

// Save validates the extension and size, then stores the file under a
// random name. It returns the public URL path of the stored file.
func (s *AvatarStore) Save(filename string, size int64, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedAvatarExts[ext] {
		return "", ErrBadContentType
	}
	if size > MaxAvatarSize {
		return "", ErrFileTooLarge
	}

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	// Cap the copy as well, in case the declared size lied
	if _, err := io.Copy(dst, io.LimitReader(r, MaxAvatarSize+1)); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	if info, err := dst.Stat(); err == nil && info.Size() > MaxAvatarSize {
		os.Remove(dst.Name())
		return "", ErrFileTooLarge
	}

	return "/uploads/avatars/" + name, nil
}

// Remove deletes a previously stored avatar by its public URL path.
// Best effort: a missing file is not an error.
func (s *AvatarStore) Remove(urlPath string) {
	name := filepath.Base(urlPath)
	if name == "." || name == "/" || name == "" {
		return
	}
	os.Remove(filepath.Join(s.dir, name))
}

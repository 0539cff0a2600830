// Package attach handles attachment file I/O and path resolution.
// Files live under attach_dir/<kind>/<parent_id>/<filename>; the database
// only keeps metadata and a "file:" URL relative to attach_dir.
package attach

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/lherron/homeplan/internal/domain"
)

// URLScheme prefixes the URL of attachments stored by this package.
const URLScheme = "file:"

// Config holds attachment configuration.
type Config struct {
	AttachDir string // Base directory for attachments
	MaxMB     int64  // Maximum attachment size in MB (0 = unlimited)
}

// ParentDir returns the directory for one record's attachments.
func ParentDir(attachDir string, kind domain.Kind, parentID string) string {
	return filepath.Join(attachDir, string(kind), parentID)
}

// RelativePath returns the path of an attachment relative to attach_dir.
func RelativePath(kind domain.Kind, parentID, filename string) string {
	return filepath.Join(string(kind), parentID, filename)
}

// AbsolutePath returns the absolute path for an attachment file.
func AbsolutePath(attachDir, relativePath string) string {
	return filepath.Join(attachDir, relativePath)
}

// URL builds the stored URL for a relative path.
func URL(relativePath string) string {
	return URLScheme + filepath.ToSlash(relativePath)
}

// LocalPath returns the relative path of a URL produced by URL. ok is false
// for URLs that point elsewhere (blob:, https:, ...).
func LocalPath(url string) (string, bool) {
	if !strings.HasPrefix(url, URLScheme) {
		return "", false
	}
	return filepath.FromSlash(strings.TrimPrefix(url, URLScheme)), true
}

// CopyFile copies a file from src to dst, returning size and checksum.
// If src is "-", reads from stdin.
func CopyFile(src, dst string) (size int64, checksum string, err error) {
	var srcFile *os.File
	if src == "-" {
		srcFile = os.Stdin
	} else {
		srcFile, err = os.Open(src)
		if err != nil {
			return 0, "", fmt.Errorf("failed to open source: %w", err)
		}
		defer srcFile.Close()
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, "", fmt.Errorf("failed to create destination directory: %w", err)
	}
	dstFile, err := os.Create(dst)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create destination: %w", err)
	}
	defer dstFile.Close()

	hasher := sha256.New()
	size, err = io.Copy(io.MultiWriter(dstFile, hasher), srcFile)
	if err != nil {
		return 0, "", fmt.Errorf("failed to copy file: %w", err)
	}
	return size, hex.EncodeToString(hasher.Sum(nil)), nil
}

// DetectMimeType attempts to detect MIME type from filename extension.
// Falls back to application/octet-stream if unknown.
func DetectMimeType(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return "application/octet-stream"
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}

	// Strip parameters like charset
	if idx := strings.IndexByte(mimeType, ';'); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

// ValidateSize checks if file size is within limits.
func ValidateSize(size int64, maxMB int64) error {
	if maxMB <= 0 {
		return nil // No limit
	}
	maxBytes := maxMB * 1024 * 1024
	if size > maxBytes {
		return fmt.Errorf("attachment size %d bytes exceeds limit of %d MB", size, maxMB)
	}
	return nil
}

// DeleteFile removes an attachment file.
func DeleteFile(attachDir, relativePath string) error {
	if err := os.Remove(AbsolutePath(attachDir, relativePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}

// MoveParent moves a record's attachment directory to another record, e.g.
// when an item becomes an option. It returns the URL rewrite to apply to the
// moved attachments. A record without files is not an error.
func MoveParent(attachDir string, fromKind domain.Kind, fromID string, toKind domain.Kind, toID string) (func(url string) string, error) {
	from := ParentDir(attachDir, fromKind, fromID)
	to := ParentDir(attachDir, toKind, toID)
	oldPrefix := URL(RelativePath(fromKind, fromID, "")) + "/"
	newPrefix := URL(RelativePath(toKind, toID, "")) + "/"
	rewrite := func(url string) string {
		if strings.HasPrefix(url, oldPrefix) {
			return newPrefix + strings.TrimPrefix(url, oldPrefix)
		}
		return url
	}

	if _, err := os.Stat(from); errors.Is(err, os.ErrNotExist) {
		return rewrite, nil
	}
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		return nil, fmt.Errorf("failed to move attachments of %s %s: %w", fromKind, fromID, err)
	}
	return rewrite, nil
}

// RemoveAll deletes every attachment file. Used by a local reset.
func RemoveAll(attachDir string) error {
	for _, kind := range domain.Kinds {
		if err := os.RemoveAll(filepath.Join(attachDir, string(kind))); err != nil {
			return fmt.Errorf("failed to delete %s attachments: %w", kind, err)
		}
	}
	return nil
}

// GetFileSize returns the size of a file in bytes.
func GetFileSize(path string) (int64, error) {
	if path == "-" {
		return 0, fmt.Errorf("cannot determine size of stdin")
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	return info.Size(), nil
}

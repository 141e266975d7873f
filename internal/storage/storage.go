// Package storage keeps uploaded files: payment proofs, identity documents
// and motor images. Files are addressed by an opaque ref of the form
// "<category>/<uuid><ext>" that is the only thing persisted in the database.
//
// Two drivers are available:
//   - "local"  local filesystem (default)
//   - "s3"     S3-compatible object storage (AWS S3, MinIO, R2)
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"

	"github.com/google/uuid"

	"motorent/internal/config"
)

type Category string

const (
	Proofs    Category = "proofs"
	Documents Category = "documents"
	Motors    Category = "motors"
)

var (
	ErrNotFound        = errors.New("file not found")
	ErrTooLarge        = errors.New("file exceeds the upload size limit")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmpty           = errors.New("file is empty")
	ErrInvalidRef      = errors.New("invalid file reference")
)

// extensions maps sniffed content types to stored file extensions.
var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// allowed lists what each category accepts. Motor images are shown on the
// public catalogue, so no PDFs there.
var allowed = map[Category][]string{
	Proofs:    {"image/jpeg", "image/png", "image/webp", "application/pdf"},
	Documents: {"image/jpeg", "image/png", "image/webp", "application/pdf"},
	Motors:    {"image/jpeg", "image/png", "image/webp"},
}

var refPattern = regexp.MustCompile(`^(proofs|documents|motors)/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.(jpg|png|webp|pdf)$`)

// Disk is the driver interface.
type Disk interface {
	Put(ctx context.Context, path string, content []byte, contentType string) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Delete removes a file. Returns nil if the file did not exist.
	Delete(ctx context.Context, path string) error
}

// Upload is a file received from a client.
type Upload struct {
	Name string
	Body io.Reader
}

// Files is the file-lifecycle capability the services depend on.
type Files interface {
	Store(ctx context.Context, category Category, u Upload) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, string, error)
	Remove(ctx context.Context, ref string) error
}

type Store struct {
	disk     Disk
	maxBytes int64
}

func New(disk Disk, maxBytes int64) *Store {
	return &Store{disk: disk, maxBytes: maxBytes}
}

// Connect builds the store for the configured driver.
func Connect(ctx context.Context, cfg config.StorageConfig, maxBytes int64) (*Store, error) {
	switch cfg.Driver {
	case "", "local":
		d, err := NewLocalDisk(cfg.LocalRoot)
		if err != nil {
			return nil, err
		}
		return New(d, maxBytes), nil
	case "s3":
		d, err := NewS3Disk(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return New(d, maxBytes), nil
	}
	return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
}

// Store validates size and content type, then writes the upload under a
// fresh ref.
func (s *Store) Store(ctx context.Context, category Category, u Upload) (string, error) {
	if u.Body == nil {
		return "", ErrEmpty
	}
	data, err := io.ReadAll(io.LimitReader(u.Body, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("storage: read upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}

	ct := http.DetectContentType(data)
	ext, ok := extensions[ct]
	if !ok || !accepts(category, ct) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ct)
	}

	ref := string(category) + "/" + uuid.NewString() + ext
	if err := s.disk.Put(ctx, ref, data, ct); err != nil {
		return "", err
	}
	return ref, nil
}

// Open returns the file content and its content type.
func (s *Store) Open(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	if !ValidRef(ref) {
		return nil, "", ErrInvalidRef
	}
	ok, err := s.disk.Exists(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", ErrNotFound
	}
	rc, err := s.disk.Open(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	return rc, contentTypes[path.Ext(ref)], nil
}

// Remove deletes ref. An empty ref is a no-op so callers can pass optional
// references straight through.
func (s *Store) Remove(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	if !ValidRef(ref) {
		return ErrInvalidRef
	}
	return s.disk.Delete(ctx, ref)
}

// ValidRef reports whether ref was produced by Store. Anything else,
// including path traversal attempts, is rejected.
func ValidRef(ref string) bool {
	return refPattern.MatchString(ref)
}

// CategoryOf returns the category part of a valid ref.
func CategoryOf(ref string) (Category, bool) {
	if !ValidRef(ref) {
		return "", false
	}
	m := refPattern.FindStringSubmatch(ref)
	return Category(m[1]), true
}

func accepts(c Category, ct string) bool {
	for _, v := range allowed[c] {
		if v == ct {
			return true
		}
	}
	return false
}

// Package storage stores uploaded resumes and resolves stored references back to bytes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiretrack/internal/config"
)

// KeyPrefix holds every resume object. References outside it are never resolved.
const KeyPrefix = "resumes/"

// Store persists resume documents. Put returns the reference recorded on the
// candidate; Get resolves a reference produced by the same store.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	// Owns reports whether ref names a resume object of this store.
	Owns(ref string) bool
}

// UploadTarget is a signed request a client uses to upload a resume directly.
type UploadTarget struct {
	URL       string
	Method    string
	Headers   map[string]string
	Key       string
	Ref       string // reference to submit as the application's resumeUrl
	ExpiresAt time.Time
}

// Presigner is implemented by stores that accept direct client uploads.
type Presigner interface {
	PresignUpload(ctx context.Context, filename, contentType string) (*UploadTarget, error)
}

// Errors returned by stores.
var (
	ErrUnknownReference    = errors.New("unknown storage reference")
	ErrPresignNotSupported = errors.New("direct uploads are not supported by this storage backend")
)

// ownedKey reports whether key is a single object below KeyPrefix.
func ownedKey(key string) bool {
	name, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok || name == "" {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

// New picks S3 when a bucket is configured and the local directory otherwise.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.S3Bucket != "" {
		return NewS3Store(ctx, S3Options{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PathStyle:     cfg.S3PathStyle,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	}
	return NewLocalStore(cfg.StorageDir)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// NewKey builds a unique object key for an uploaded file name.
func NewKey(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	base = unsafeChars.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-.")
	if base == "" {
		base = "resume"
	}
	if len(base) > 100 {
		base = base[len(base)-100:]
	}
	return fmt.Sprintf("%s%s-%s", KeyPrefix, uuid.NewString(), base)
}

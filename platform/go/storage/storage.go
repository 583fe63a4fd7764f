package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logical bucket names. Deployments may map them to different physical buckets.
const (
	BannersBucket = "event-banners"
	LogosBucket   = "church-logos"
)

// ErrObjectExists is returned by Upload without upsert when the path is taken.
var ErrObjectExists = errors.New("object already exists")

// Bucket stores blobs and exposes them through public URLs.
type Bucket interface {
	Name() string
	Upload(ctx context.Context, objectPath string, r io.Reader, contentType string, upsert bool) error
	// Delete is idempotent: a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error
	PublicURL(objectPath string) string
	// Check verifies the bucket is reachable and writable by this process.
	Check(ctx context.Context) error
}

// ObjectLocation describes where a blob should live.
type ObjectLocation struct {
	Bucket   string
	FullPath string
}

// ResolveObjectLocation validates a bucket/key pair and normalises the key.
// Keys are relative; leading slashes are trimmed and parent segments rejected.
func ResolveObjectLocation(bucket string, logicalKey string) (ObjectLocation, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return ObjectLocation{}, fmt.Errorf("bucket is required")
	}
	key := strings.TrimSpace(logicalKey)
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return ObjectLocation{}, fmt.Errorf("logical key is required")
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." || segment == "." {
			return ObjectLocation{}, fmt.Errorf("invalid object key %q", logicalKey)
		}
	}

	return ObjectLocation{Bucket: bucket, FullPath: path.Clean(key)}, nil
}

// BannerPath returns banners/{eventID}-{unixMillis}.{ext}.
func BannerPath(eventID uuid.UUID, at time.Time, filename, contentType string) string {
	return fmt.Sprintf("banners/%s-%d.%s", eventID, at.UnixMilli(), Extension(filename, contentType))
}

// LogoPath returns {tenantID}.{ext}.
func LogoPath(tenantID uuid.UUID, filename, contentType string) string {
	return fmt.Sprintf("%s.%s", tenantID, Extension(filename, contentType))
}

// Extension picks the file extension from the filename, falling back to the
// content type and finally to "bin".
func Extension(filename, contentType string) string {
	if ext := strings.TrimPrefix(path.Ext(strings.TrimSpace(filename)), "."); ext != "" {
		return strings.ToLower(ext)
	}
	if contentType != "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			return strings.TrimPrefix(exts[0], ".")
		}
	}
	return "bin"
}

// AllowedImage reports whether contentType is an accepted image upload.
func AllowedImage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mediaType {
	case "image/png", "image/jpeg", "image/webp", "image/gif", "image/svg+xml":
		return true
	default:
		return false
	}
}

// MaxImageBytes bounds banner and logo uploads.
const MaxImageBytes = 5 << 20

// ContentTypeFor returns the declared content type unless it is empty or the
// generic application/octet-stream, in which case it is derived from the
// filename extension.
func ContentTypeFor(filename, declared string) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(path.Ext(strings.TrimSpace(filename)))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

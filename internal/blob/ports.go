// Package blob defines storage for referenced audio objects.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("blob not found")
	ErrUnsupportedURI = errors.New("unsupported blob uri")
)

type (
	// Store reads and removes objects addressed by "<scheme>://<bucket>/<key>" URIs.
	Store interface {
		Open(ctx context.Context, uri string) (io.ReadCloser, error)
		Delete(ctx context.Context, uri string) error
		// Handles reports whether the store understands the uri scheme.
		Handles(uri string) bool
	}

	// Presigner issues short-lived upload URLs for direct client uploads.
	Presigner interface {
		PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (Upload, error)
	}

	Upload struct {
		URL       string    `json:"signedUrl"`
		URI       string    `json:"uri"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
)

// Location is a parsed object URI.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

func (l Location) String() string {
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// ParseURI splits an object URI into scheme, bucket and key.
func ParseURI(uri string) (Location, error) {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrUnsupportedURI, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Scheme == "" || u.Host == "" || key == "" {
		return Location{}, fmt.Errorf("%w: %q", ErrUnsupportedURI, uri)
	}
	return Location{Scheme: strings.ToLower(u.Scheme), Bucket: u.Host, Key: key}, nil
}

// CleanKey turns a client supplied file name into a safe object key under prefix.
func CleanKey(prefix, name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	parts := strings.Split(name, "/")
	base := parts[len(parts)-1]
	if base == "" || base == "." || base == ".." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return base, nil
	}
	return prefix + "/" + base, nil
}

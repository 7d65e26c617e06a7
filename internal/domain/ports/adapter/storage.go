package adapter

import (
	"context"
	"io"
	"time"
)

// ObjectStorage is addressed by logical bucket names (uploads, imageBank, public);
// implementations map them onto physical buckets.
type ObjectStorage interface {
	// Put overwrites any existing object at bucket/key.
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
	// PresignGet mints a short-lived read URL. A missing object is domain.ErrNotFound.
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// QREncoder renders a payload as a PNG.
type QREncoder interface {
	EncodePNG(payload string, size int) ([]byte, error)
}

// FetchedImage is an upstream response body plus the headers the proxy mirrors.
type FetchedImage struct {
	Body          io.ReadCloser
	ContentType   string
	CacheControl  string
	ContentLength int64
}

// ImageFetcher retrieves bytes from a signed or external URL.
// Non-2xx upstream answers are domain.ErrUpstream.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedImage, error)
}

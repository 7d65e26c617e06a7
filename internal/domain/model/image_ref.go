package model

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"earlykickoff-backend/internal/domain"
)

// Logical storage buckets known to the image proxy.
const (
	BucketUploads   = "uploads"
	BucketImageBank = "imageBank"
	BucketPublic    = "public"
)

var knownBuckets = map[string]bool{
	BucketUploads:   true,
	BucketImageBank: true,
	BucketPublic:    true,
}

// ImageRef is a resolved image reference: either a bucket/key pair in object
// storage or an external URL (absolute http(s) or data URL) used verbatim.
type ImageRef struct {
	Bucket   string
	Key      string
	External string
}

func (r ImageRef) IsExternal() bool { return r.External != "" }

// ObjectPath is the "<bucket>/<key>" form persisted on owning rows.
func (r ImageRef) ObjectPath() string {
	if r.IsExternal() {
		return r.External
	}
	return r.Bucket + "/" + r.Key
}

// ParseImageRef resolves a stored reference with uploads as the default bucket.
func ParseImageRef(ref string) (ImageRef, error) {
	return ParseImageRefIn(ref, BucketUploads)
}

// ParseImageRefIn resolves a stored reference. Legacy "i/<token>" values are
// unwrapped first; a leading known bucket name is split off, otherwise
// defaultBucket applies.
func ParseImageRefIn(ref, defaultBucket string) (ImageRef, error) {
	s := strings.TrimSpace(ref)
	if s == "" {
		return ImageRef{}, domain.ErrNotFound
	}
	if isExternalURL(s) {
		return ImageRef{External: s}, nil
	}

	if strings.HasPrefix(s, "i/") || strings.HasPrefix(s, "/i/") {
		token := strings.TrimPrefix(strings.TrimPrefix(s, "/"), "i/")
		if p, ok := DecodeImageToken(token); ok {
			s = p
		}
	}

	s = strings.TrimLeft(s, "/")
	if s == "" {
		return ImageRef{}, domain.ErrNotFound
	}

	bucket := defaultBucket
	if bucket == "" {
		bucket = BucketUploads
	}
	key := s
	if head, rest, found := strings.Cut(s, "/"); found && knownBuckets[head] {
		bucket, key = head, rest
	}
	if key == "" {
		return ImageRef{}, domain.ErrNotFound
	}
	return ImageRef{Bucket: bucket, Key: key}, nil
}

// DecodeImageToken extracts the storage path from a legacy token of the form
// "<base64url-json>[.signature]". The signature is not checked.
func DecodeImageToken(token string) (string, bool) {
	payload, _, _ := strings.Cut(token, ".")
	if payload == "" {
		return "", false
	}
	std := strings.NewReplacer("-", "+", "_", "/").Replace(payload)
	if pad := len(std) % 4; pad != 0 {
		std += strings.Repeat("=", 4-pad)
	}
	b, err := base64.StdEncoding.DecodeString(std)
	if err != nil {
		return "", false
	}
	var body struct {
		P string `json:"p"`
	}
	if err := json.Unmarshal(b, &body); err != nil || body.P == "" {
		return "", false
	}
	return body.P, true
}

func isExternalURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") || strings.HasPrefix(l, "data:")
}

// LegacyOrderQRPath recovers an object path from an old qr_image_url value.
func LegacyOrderQRPath(qrImageURL string) string {
	u := strings.TrimSpace(qrImageURL)
	if i := strings.Index(u, BucketImageBank+"/"); i >= 0 {
		return u[i:]
	}
	if i := strings.Index(u, "orders/"); i >= 0 {
		return BucketImageBank + "/" + u[i:]
	}
	return ""
}

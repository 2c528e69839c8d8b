// Package media resolves stored media references into short-lived signed URLs
// that clients can render directly.
package media

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// PublicObjectMarker is the path segment that precedes "<bucket>/<object>"
// in public object URLs issued by the storage service.
const PublicObjectMarker = "/storage/v1/object/public/"

// DefaultSignedURLTTL is the validity window of a signed URL.
const DefaultSignedURLTTL = time.Hour

// Signer creates time-limited signed URLs for stored objects.
type Signer interface {
	SignURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// StoragePath is a bucket-qualified object location.
type StoragePath struct {
	Bucket string
	Key    string
}

// ExtractStoragePath locates the bucket and object key in a raw media reference.
// Absolute URLs are inspected for PublicObjectMarker (query strings are ignored);
// any other non-empty value is read as "<bucket>/<object-path>".
// The second return value is false when the reference is already renderable as is.
func ExtractStoragePath(raw string) (StoragePath, bool) {
	if raw == "" {
		return StoragePath{}, false
	}

	path := raw
	if isAbsoluteURL(raw) {
		clean, _, _ := strings.Cut(raw, "?")
		idx := strings.Index(clean, PublicObjectMarker)
		if idx == -1 {
			return StoragePath{}, false
		}
		path = clean[idx+len(PublicObjectMarker):]
	}

	bucket, key, ok := strings.Cut(path, "/")
	if !ok || bucket == "" || key == "" {
		return StoragePath{}, false
	}
	return StoragePath{Bucket: bucket, Key: key}, true
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// TTL is the signed URL validity window. Defaults to DefaultSignedURLTTL.
	TTL time.Duration
	// Logger for signing failures.
	Logger *slog.Logger
	// Metrics for signing outcomes (optional).
	Metrics *Metrics
}

// Resolver turns raw media references into URLs a client can render.
// Each call is independent: results are never cached here.
type Resolver struct {
	signer  Signer
	ttl     time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

// NewResolver creates a Resolver. A nil signer resolves every reference to itself.
func NewResolver(signer Signer, cfg ResolverConfig) *Resolver {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSignedURLTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Resolver{
		signer:  signer,
		ttl:     cfg.TTL,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Resolve returns a renderable URL for raw. It never fails: empty input yields
// "", references outside object storage are returned unchanged, and signing
// failures degrade to the original value.
func (r *Resolver) Resolve(ctx context.Context, raw string) string {
	if raw == "" {
		return ""
	}

	path, ok := ExtractStoragePath(raw)
	if !ok {
		r.observe(OutcomePassthrough)
		return raw
	}
	if r.signer == nil {
		r.observe(OutcomeUnsigned)
		return raw
	}

	signed, err := r.signer.SignURL(ctx, path.Bucket, path.Key, r.ttl)
	if err != nil || signed == "" {
		r.observe(OutcomeFailed)
		attrs := []any{
			slog.String("bucket", path.Bucket),
			slog.String("key", path.Key),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		r.logger.WarnContext(ctx, "failed to sign media url, using raw reference", attrs...)
		return raw
	}

	r.observe(OutcomeSigned)
	return signed
}

func (r *Resolver) observe(outcome string) {
	if r.metrics != nil {
		r.metrics.IncSign(outcome)
	}
}

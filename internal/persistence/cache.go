// Package persistence implements the detector's opaque snapshot cache
// (spec.md §4.1.3, §6): a small key/value blob store plus a sibling
// human-readable metadata writer, with a local file-backed implementation
// and an optional Redis-backed one for live-mode deployments that share
// state across processes.
package persistence

import "context"

// Cache stores and retrieves opaque snapshot blobs keyed by a detector's
// cache key (spec.md §6: "{safe_symbol}_tw{W}_ms{S}_pm{M}_bm{sorted_modes}").
// Implementations must treat a missing key as (nil, false, nil), never an
// error, so "no cache yet" and "cache cleared" look identical to callers.
type Cache interface {
	Save(ctx context.Context, key string, blob []byte) error
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Clear(ctx context.Context, key string) error
}

// MetadataWriter optionally persists a small human-inspectable JSON
// sidecar alongside the binary snapshot (spec.md §6: "a sibling small
// metadata file may be written as plain JSON for human inspection").
// FileCache implements this; RedisCache does not need to, since Redis
// values are not inspected on a filesystem.
type MetadataWriter interface {
	SaveMetadata(ctx context.Context, key string, metadata []byte) error
}

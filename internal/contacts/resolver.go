// Package contacts resolves participant identifiers to display names
// and avatar URLs with bounded concurrency against the session and
// aggressive caching, including negative results, so a degraded session
// is not hammered for contacts it cannot resolve.
package contacts

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wabridge/wabridge/internal/cache"
	"github.com/wabridge/wabridge/internal/client"
	"go.uber.org/zap"
)

// Cache TTLs, matching the polling patterns of the consumers: identity
// changes rarely, avatars almost never.
const (
	IdentityTTL = 30 * time.Minute
	AvatarTTL   = time.Hour
)

// DefaultConcurrency bounds simultaneous resolution calls per chunk.
const DefaultConcurrency = 5

// Info is the best-available identity for one participant. Empty fields
// are valid negative results and are cached like any other.
type Info struct {
	Name      string `json:"name"`
	AvatarURL string `json:"profilePic"`
}

// Resolver batches identity lookups.
type Resolver struct {
	names       *cache.Store[string, Info]
	avatars     *cache.Store[string, string]
	concurrency int
	logger      *zap.Logger
}

// NewResolver creates a resolver over the given caches. The avatar
// cache is shared with the profile-pic endpoint. concurrency <= 0
// selects DefaultConcurrency.
func NewResolver(names *cache.Store[string, Info], avatars *cache.Store[string, string], concurrency int, logger *zap.Logger) *Resolver {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Resolver{
		names:       names,
		avatars:     avatars,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Resolve returns an Info for every requested identifier, never a
// partial mapping. Duplicates are ignored. Cache misses are resolved in
// sequential chunks; within a chunk all calls run concurrently and the
// next chunk starts only once the whole chunk settled. Per-identifier
// failures degrade to a cached negative Info.
func (r *Resolver) Resolve(ctx context.Context, sess client.Session, ids []string) map[string]Info {
	results := make(map[string]Info, len(ids))

	var misses []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		// Any fresh entry is a hit, negatives included. A contact
		// with no public name must not be re-fetched until its TTL
		// expires.
		if info, ok := r.names.Get(id); ok {
			results[id] = info
			continue
		}
		misses = append(misses, id)
	}

	if len(misses) == 0 {
		return results
	}
	r.logger.Debug("resolving uncached contacts", zap.Int("count", len(misses)))

	var mu sync.Mutex
	for start := 0; start < len(misses); start += r.concurrency {
		end := min(start+r.concurrency, len(misses))
		var wg sync.WaitGroup
		for _, id := range misses[start:end] {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				info := r.resolveOne(ctx, sess, id)
				mu.Lock()
				results[id] = info
				mu.Unlock()
			}(id)
		}
		wg.Wait()
	}

	return results
}

// resolveOne fetches identity and avatar for a single participant and
// caches whatever it learned, negative results included. No retries
// within an invocation.
func (r *Resolver) resolveOne(ctx context.Context, sess client.Session, id string) Info {
	contact, err := sess.Contact(ctx, id)
	if err != nil {
		info := Info{}
		r.names.Put(id, info)
		return info
	}

	info := Info{Name: bestName(contact)}

	// Avatar: a fresh cached URL wins; a stale one is still preferred
	// over another round-trip; only a true absence triggers a fetch.
	if url, ok := r.avatars.Get(id); ok {
		info.AvatarURL = url
	} else if url, ok := r.avatars.GetStale(id); ok {
		info.AvatarURL = url
	} else {
		url, err := sess.AvatarURL(ctx, id)
		if err != nil {
			url = ""
		}
		r.avatars.Put(id, url)
		info.AvatarURL = url
	}

	r.names.Put(id, info)
	return info
}

// CachedOnly returns whatever identity is already known without calling
// the session. Used by polling paths that cannot afford upstream
// latency. The mapping is total; unknown identifiers map to an empty
// Info.
func (r *Resolver) CachedOnly(ids []string) map[string]Info {
	results := make(map[string]Info, len(ids))
	for _, id := range ids {
		if _, dup := results[id]; dup {
			continue
		}
		info, _ := r.names.Get(id)
		results[id] = info
	}
	return results
}

// bestName prefers the self-declared push name, then the saved contact
// name, then the short name.
func bestName(c client.Contact) string {
	switch {
	case c.PushName != "":
		return c.PushName
	case c.FullName != "":
		return c.FullName
	default:
		return c.ShortName
	}
}

// PhoneFallback extracts the phone part of an identifier for display
// when no name resolved.
func PhoneFallback(id string) string {
	if at := strings.IndexByte(id, '@'); at >= 0 {
		return id[:at]
	}
	return id
}

package biz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/jpeg"
	"sync"
	"time"

	"videoanalyzer/internal/pkg/hash"
	"videoanalyzer/internal/pkg/redis"

	"github.com/go-kratos/kratos/v2/log"
)

const cacheKeyPrefix = "videoanalyzer:"

// CachedClassifier serves repeated frames from the cache. Frames are keyed
// by perceptual hash so re-encoded copies of one frame share an entry, and
// by prompt so a changed taxonomy or context is classified afresh.
type CachedClassifier struct {
	next   FrameClassifier
	cache  redis.Cache
	ttl    time.Duration
	hasher *hash.PerceptualHasher
	log    *log.Helper
}

// NewCachedClassifier wraps next with cache.
func NewCachedClassifier(next FrameClassifier, cache redis.Cache, ttl time.Duration, logger log.Logger) *CachedClassifier {
	return &CachedClassifier{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		hasher: hash.NewPerceptualHasher(),
		log:    log.NewHelper(log.With(logger, "component", "classifier_cache")),
	}
}

func (c *CachedClassifier) ClassifyFrame(ctx context.Context, image []byte, prompt string) (*Classification, error) {
	key := c.key(image, prompt)

	var cached Classification
	if cacheGet(ctx, c.cache, c.log, key, &cached) {
		c.log.Debugf("cache hit %s", key)
		return &cached, nil
	}

	res, err := c.next.ClassifyFrame(ctx, image, prompt)
	if err != nil {
		return nil, err
	}
	cacheSet(ctx, c.cache, c.log, key, res, c.ttl)
	return res, nil
}

func (c *CachedClassifier) key(image []byte, prompt string) string {
	promptKey := hash.Hex(hash.FastHash(prompt))
	img, err := jpeg.Decode(bytes.NewReader(image))
	if err == nil {
		if fh, err := c.hasher.ComputePHash(img); err == nil {
			return cacheKeyPrefix + "frame:p:" + fh.String() + ":" + promptKey
		}
	}
	return cacheKeyPrefix + "frame:b:" + hash.Hex(hash.Hash(image)) + ":" + promptKey
}

// CachedTranscriber serves repeated audio clips from the cache, keyed by
// the hash of the encoded clip.
type CachedTranscriber struct {
	next  Transcriber
	cache redis.Cache
	ttl   time.Duration
	log   *log.Helper
}

// NewCachedTranscriber wraps next with cache.
func NewCachedTranscriber(next Transcriber, cache redis.Cache, ttl time.Duration, logger log.Logger) *CachedTranscriber {
	return &CachedTranscriber{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   log.NewHelper(log.With(logger, "component", "transcriber_cache")),
	}
}

func (c *CachedTranscriber) Transcribe(ctx context.Context, wav []byte) (*Transcription, error) {
	key := cacheKeyPrefix + "asr:" + hash.Hex(hash.Hash(wav))

	var cached Transcription
	if cacheGet(ctx, c.cache, c.log, key, &cached) {
		c.log.Debugf("cache hit %s", key)
		return &cached, nil
	}

	res, err := c.next.Transcribe(ctx, wav)
	if err != nil {
		return nil, err
	}
	cacheSet(ctx, c.cache, c.log, key, res, c.ttl)
	return res, nil
}

// Cache failures only cost a call, so they are logged and ignored.
func cacheGet(ctx context.Context, cache redis.Cache, l *log.Helper, key string, v any) bool {
	b, err := cache.GetBytes(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l.Warnf("cache get %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		l.Warnf("cache entry %s unreadable: %v", key, err)
		return false
	}
	return true
}

func cacheSet(ctx context.Context, cache redis.Cache, l *log.Helper, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := cache.SetBytes(ctx, key, b, ttl); err != nil {
		l.Warnf("cache set %s: %v", key, err)
	}
}

// frameMemo reuses classifications between near-duplicate frames of one run.
type frameMemo struct {
	mu       sync.Mutex
	distance int
	entries  []memoEntry
}

type memoEntry struct {
	hash   *hash.FrameHash
	result *Classification
}

func newFrameMemo(distance int) *frameMemo {
	return &frameMemo{distance: distance}
}

// lookup returns the classification of the closest earlier frame within distance.
func (m *frameMemo) lookup(h *hash.FrameHash) *Classification {
	if m == nil || h == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	best, bestDist := (*Classification)(nil), m.distance+1
	for _, e := range m.entries {
		if d := hash.HammingDistance(e.hash.Hash, h.Hash); d < bestDist {
			best, bestDist = e.result, d
		}
	}
	return best
}

func (m *frameMemo) store(h *hash.FrameHash, c *Classification) {
	if m == nil || h == nil || c == nil {
		return
	}
	m.mu.Lock()
	m.entries = append(m.entries, memoEntry{hash: h, result: c})
	m.mu.Unlock()
}

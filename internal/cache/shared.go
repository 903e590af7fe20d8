package cache

import (
	"context"
	stderrors "errors"
	"strings"
	"sync/atomic"
	"time"

	"threat-cache/internal/circuitbreaker"
	"threat-cache/internal/common/errors"
	"threat-cache/internal/common/logging"
	"threat-cache/internal/redis"
)

var errMalformedEntry = stderrors.New("malformed cache entry")

// SharedTierOptions configures a SharedTier.
type SharedTierOptions struct {
	// Prefix namespaces every key this tier writes, e.g. "threat-cache:".
	Prefix string
	// OpTimeout bounds each round trip. Defaults to 500ms.
	OpTimeout time.Duration
	// Breaker tunes when the tier is considered disconnected.
	Breaker circuitbreaker.Config
}

// SharedTier is the networked tier. Every operation is fallible but never
// surfaces an error: reads degrade to a miss and writes to a no-op, and the
// failure is logged. A nil *SharedTier behaves as permanently disconnected.
type SharedTier struct {
	client    *redis.Client
	prefix    string
	opTimeout time.Duration
	breaker   *circuitbreaker.GoBreakerAdapter
	closed    atomic.Bool
	logger    logging.Logger
}

// NewSharedTier wraps client and pings it once within the client's connect
// timeout. When the ping fails the tier starts disconnected and the breaker
// probes the server again after its timeout.
func NewSharedTier(ctx context.Context, client *redis.Client, opts SharedTierOptions, logger logging.Logger) *SharedTier {
	logger = logging.OrGlobal(logger).WithFields(logging.Field{Key: "tier", Value: TierShared.String()})

	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 500 * time.Millisecond
	}
	if opts.Breaker == (circuitbreaker.Config{}) {
		opts.Breaker = circuitbreaker.SharedTierConfig
	}

	s := &SharedTier{
		client:    client,
		prefix:    opts.Prefix,
		opTimeout: opts.OpTimeout,
		breaker:   circuitbreaker.NewGoBreaker("cache-shared-tier", opts.Breaker, logger),
		logger:    logger,
	}

	if client == nil {
		s.closed.Store(true)
		return s
	}

	if err := client.Ping(ctx); err != nil {
		logger.Warn("Shared tier unreachable, starting disconnected",
			logging.Field{Key: "address", Value: client.Address()},
			logging.Err(err),
		)
		s.breaker.Trip()
	} else {
		logger.Info("Shared tier connected", logging.Field{Key: "address", Value: client.Address()})
	}

	return s
}

// Connected reports whether operations are currently attempted. It is false
// after Disconnect and while the breaker is open.
func (s *SharedTier) Connected() bool {
	return s != nil && !s.closed.Load() && !s.breaker.IsOpen()
}

// Breaker exposes the breaker statistics.
func (s *SharedTier) Breaker() circuitbreaker.Stats {
	if s == nil {
		return circuitbreaker.Stats{State: circuitbreaker.StateOpen.String()}
	}
	return s.breaker.Stats()
}

// Disconnect closes the client. Every later call is a miss or a no-op.
func (s *SharedTier) Disconnect() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// do runs fn with the per-operation timeout through the breaker. Only
// transport errors and expiries of the tier's own timeout count against the
// breaker; a caller that cancels or runs out of its own deadline does not.
// Not-found and canceled results are returned but not logged.
func (s *SharedTier) do(ctx context.Context, op, key string, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return errors.CanceledError("shared tier "+op, err)
	}

	err := s.breaker.Execute(opCtx, func() error {
		err := fn(opCtx)
		switch {
		case err == nil:
			return nil
		case redis.IsNil(err):
			return errors.NotFoundError(key)
		case ctx.Err() != nil:
			return errors.CanceledError("shared tier "+op, ctx.Err())
		case stderrors.Is(err, context.DeadlineExceeded) || opCtx.Err() != nil:
			return errors.TimeoutError("shared tier "+op, err)
		default:
			return errors.ConnectionError("shared tier "+op+" failed", err)
		}
	})

	switch {
	case err == nil, errors.IsType(err, errors.ErrTypeNotFound):
	case errors.IsType(err, errors.ErrTypeCanceled):
		s.logger.Debug("Shared tier operation abandoned by caller",
			logging.Field{Key: "op", Value: op},
			logging.Field{Key: "key", Value: key},
		)
	default:
		s.logger.Warn("Shared tier operation failed",
			logging.Field{Key: "op", Value: op},
			logging.Field{Key: "key", Value: key},
			logging.Err(err),
		)
	}
	return err
}

// Get returns the envelope stored at key and the TTL it has left. A corrupt
// or expired envelope is deleted and reported as a miss.
func (s *SharedTier) Get(ctx context.Context, key string) (Entry, time.Duration, bool) {
	if !s.Connected() {
		return Entry{}, 0, false
	}

	var raw []byte
	var pttl time.Duration
	err := s.do(ctx, "get", key, func(ctx context.Context) error {
		var err error
		if raw, err = s.client.Get(ctx, s.prefix+key); err != nil {
			return err
		}
		pttl, err = s.client.TTL(ctx, s.prefix+key)
		return err
	})
	if err != nil {
		return Entry{}, 0, false
	}

	entry, err := decodeEntry(raw)
	if err != nil {
		s.logger.Warn("Discarding corrupt shared tier entry",
			logging.Field{Key: "key", Value: key},
			logging.Err(errors.SerializationError("decode entry", err)),
		)
		s.Delete(ctx, key)
		return Entry{}, 0, false
	}

	now := time.Now()
	if !entry.Valid(now) {
		s.Delete(ctx, key)
		return Entry{}, 0, false
	}

	remaining := entry.Remaining(now)
	if pttl > 0 && (remaining == 0 || pttl < remaining) {
		remaining = pttl
	}
	return entry, remaining, true
}

// Set writes value under key with a native TTL.
func (s *SharedTier) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if !s.Connected() {
		return
	}

	raw, err := encodeEntry(NewEntry(value, ttl))
	if err != nil {
		s.logger.Warn("Cannot serialize value for shared tier",
			logging.Field{Key: "key", Value: key},
			logging.Err(errors.SerializationError("encode entry", err)),
		)
		return
	}

	_ = s.do(ctx, "set", key, func(ctx context.Context) error {
		return s.client.Set(ctx, s.prefix+key, raw, ttl)
	})
}

// Delete removes key and reports whether it existed.
func (s *SharedTier) Delete(ctx context.Context, key string) bool {
	if !s.Connected() {
		return false
	}

	var n int64
	err := s.do(ctx, "delete", key, func(ctx context.Context) error {
		var err error
		n, err = s.client.Delete(ctx, s.prefix+key)
		return err
	})
	return err == nil && n > 0
}

// Keys returns the unprefixed keys containing pattern.
func (s *SharedTier) Keys(ctx context.Context, pattern string) []string {
	if !s.Connected() {
		return nil
	}

	var raw []string
	err := s.do(ctx, "keys", pattern, func(ctx context.Context) error {
		var err error
		raw, err = s.client.Keys(ctx, s.matchPattern(pattern))
		return err
	})
	if err != nil {
		return nil
	}

	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		k = strings.TrimPrefix(k, s.prefix)
		if strings.Contains(k, pattern) {
			keys = append(keys, k)
		}
	}
	return keys
}

// DeleteMatching removes every key containing pattern.
func (s *SharedTier) DeleteMatching(ctx context.Context, pattern string) int {
	if !s.Connected() {
		return 0
	}

	var n int64
	_ = s.do(ctx, "delete-matching", pattern, func(ctx context.Context) error {
		var err error
		n, err = s.client.DeleteMatching(ctx, s.matchPattern(pattern))
		return err
	})
	return int(n)
}

// FlushAll removes everything under the tier's prefix, or the whole database
// when the tier has no prefix.
func (s *SharedTier) FlushAll(ctx context.Context) {
	if !s.Connected() {
		return
	}

	_ = s.do(ctx, "flush", s.prefix+"*", func(ctx context.Context) error {
		if s.prefix == "" {
			return s.client.FlushDB(ctx)
		}
		_, err := s.client.DeleteMatching(ctx, escapeGlob(s.prefix)+"*")
		return err
	})
}

func (s *SharedTier) matchPattern(substring string) string {
	return escapeGlob(s.prefix) + "*" + escapeGlob(substring) + "*"
}

// escapeGlob quotes the characters Redis treats specially in MATCH patterns.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

package cache

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"threat-cache/internal/common/logging"
	"threat-cache/internal/redis"
)

func newTestShared(t *testing.T) (*SharedTier, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)

	shared := NewSharedTier(context.Background(), client, SharedTierOptions{Prefix: "test:"}, logging.NewNopLogger())
	t.Cleanup(func() { _ = shared.Disconnect() })

	return shared, mr
}

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	shared, mr := newTestShared(t)
	return NewManager(DefaultConfig(), nil, shared, nil, logging.NewNopLogger()), mr
}

func newLocalOnlyManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(DefaultConfig(), nil, nil, nil, logging.NewNopLogger())
}

// newStalledShared returns a tier whose server accepts connections but never
// answers, with its breaker closed so every call reaches the network.
func newStalledShared(t *testing.T, opTimeout time.Duration) *SharedTier {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	client, err := redis.NewClient(&redis.Config{Address: ln.Addr().String(), ConnectTimeout: 100 * time.Millisecond})
	require.NoError(t, err)

	shared := NewSharedTier(context.Background(), client, SharedTierOptions{Prefix: "test:", OpTimeout: opTimeout}, logging.NewNopLogger())
	shared.breaker.Reset()

	t.Cleanup(func() {
		_ = shared.Disconnect()
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	return shared
}

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDelete(t *testing.T) {
	req := require.New(t)
	s := NewMemory()

	req.NoError(s.Set("conn_users:userid:u1", map[string]string{"name": "alice"}, 0))

	var got map[string]string
	found, err := s.Get("conn_users:userid:u1", &got)
	req.NoError(err)
	req.True(found)
	req.Equal("alice", got["name"])

	req.NoError(s.Delete("conn_users:userid:u1"))
	found, err = s.Get("conn_users:userid:u1", &got)
	req.NoError(err)
	req.False(found)
}

func TestMemory_MissingKey(t *testing.T) {
	req := require.New(t)
	s := NewMemory()

	var got string
	found, err := s.Get("nope", &got)
	req.NoError(err)
	req.False(found)
}

func TestMemory_TTLExpiry(t *testing.T) {
	req := require.New(t)
	s := NewMemory()

	req.NoError(s.Set("short", "value", 10*time.Millisecond))
	req.NoError(s.Set("long", "value", time.Hour))

	time.Sleep(30 * time.Millisecond)

	var got string
	found, err := s.Get("short", &got)
	req.NoError(err)
	req.False(found, "expired entry must read as absent")

	found, err = s.Get("long", &got)
	req.NoError(err)
	req.True(found)

	size, err := s.Size()
	req.NoError(err)
	req.Equal(1, size)
}

func TestMemory_SizeCountsLiveEntries(t *testing.T) {
	req := require.New(t)
	s := NewMemory()

	for _, key := range []string{"a", "b", "c"} {
		req.NoError(s.Set(key, key, 0))
	}
	size, err := s.Size()
	req.NoError(err)
	req.Equal(3, size)
}

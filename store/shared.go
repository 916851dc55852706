package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// defaultSharedTTL keeps abandoned entries from accumulating in the
// shared bucket forever (sockets that never disconnect cleanly).
const defaultSharedTTL = 12 * time.Hour

// Shared is the cross-instance backend over a NATS JetStream key/value
// bucket. Per-key TTLs are carried inside the stored envelope and checked
// on read; expired entries are deleted lazily.
type Shared struct {
	kv  nats.KeyValue
	log *slog.Logger
}

type sharedEnvelope struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt int64           `json:"expiresAt,omitempty"` // unix millis, 0 = bucket default only
}

func NewShared(nc *nats.Conn, bucket string, log *slog.Logger) (*Shared, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket: bucket,
			TTL:    defaultSharedTTL,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("open kv bucket %q: %w", bucket, err)
	}
	return &Shared{kv: kv, log: log}, nil
}

func (s *Shared) Get(key string, into any) (bool, error) {
	entry, err := s.kv.Get(encodeKey(key))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var env sharedEnvelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		s.log.Error("corrupt shared store entry", "key", key, "error", err)
		return false, err
	}
	if env.ExpiresAt > 0 && time.Now().UnixMilli() > env.ExpiresAt {
		if err := s.kv.Delete(encodeKey(key)); err != nil {
			s.log.Debug("lazy expiry delete failed", "key", key, "error", err)
		}
		return false, nil
	}
	if err := json.Unmarshal(env.Data, into); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Shared) Set(key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	env := sharedEnvelope{Data: data}
	if ttl > 0 {
		env.ExpiresAt = time.Now().Add(ttl).UnixMilli()
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = s.kv.Put(encodeKey(key), raw)
	return err
}

func (s *Shared) Delete(key string) error {
	err := s.kv.Delete(encodeKey(key))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (s *Shared) Size() (int, error) {
	status, err := s.kv.Status()
	if err != nil {
		return 0, err
	}
	return int(status.Values()), nil
}

// encodeKey maps the logical ":"-separated key namespace onto the
// restricted NATS KV key charset.
func encodeKey(key string) string {
	return strings.ReplaceAll(key, ":", ".")
}

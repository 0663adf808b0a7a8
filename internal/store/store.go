package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

// Document keys.
const (
	KeyActivities    = "activities"
	KeyEmailSettings = "email-settings"
)

const defaultTimeout = 10 * time.Second

// KV is a string key-value capability.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Pinger is implemented by backends that can report availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StorageError is returned when a document cannot be persisted.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the backend did not answer in time.
func (e *StorageError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Select returns the shared backend when it answers a ping, otherwise local.
func Select(ctx context.Context, shared, local KV) KV {
	if shared == nil {
		return local
	}
	if p, ok := shared.(Pinger); ok {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.Ping(pingCtx); err != nil {
			log.Printf("[warn] shared store unavailable, using local store: %v", err)
			return local
		}
	}
	return shared
}

// Adapter reads and writes JSON documents through a KV backend.
type Adapter struct {
	kv      KV
	prefix  string
	names   map[string]string
	timeout time.Duration
}

type Option func(*Adapter)

// WithPrefix namespaces every key.
func WithPrefix(prefix string) Option {
	return func(a *Adapter) { a.prefix = prefix }
}

// WithKeyName stores the document key under name instead of prefix+key.
// Documents written by older deployments keep their own names this way.
func WithKeyName(key, name string) Option {
	return func(a *Adapter) {
		if name != "" {
			a.names[key] = name
		}
	}
}

// WithTimeout bounds every backend call.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func NewAdapter(kv KV, opts ...Option) *Adapter {
	a := &Adapter{kv: kv, names: make(map[string]string), timeout: defaultTimeout}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load decodes the document stored under key into dst. It reports false when
// the key is absent or unreadable; the caller then keeps its defaults.
func (a *Adapter) Load(ctx context.Context, key string, dst any) bool {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, found, err := a.kv.Get(ctx, a.storedName(key))
	if err != nil {
		log.Printf("[warn] load %s: %v", key, err)
		return false
	}
	if !found || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		log.Printf("[warn] decode %s: %v", key, err)
		return false
	}
	return true
}

// Save encodes v and writes it under key.
func (a *Adapter) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &StorageError{Op: "encode", Key: key, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// A Set that returns nil has landed, even if the deadline passed meanwhile.
	if err := a.kv.Set(ctx, a.storedName(key), string(data)); err != nil {
		return &StorageError{Op: "save", Key: key, Err: err}
	}
	return nil
}

func (a *Adapter) storedName(key string) string {
	if name, ok := a.names[key]; ok {
		return name
	}
	return a.prefix + key
}

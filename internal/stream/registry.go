package stream

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// StreamValue is the latest sample seen on a stream.
type StreamValue struct {
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"timestamp"`
	ServerSeq int64           `json:"serverSeq"`
}

// Registry holds the authoritative latest value per stream for a room. New
// clients seed from a snapshot; pushes advance a monotonic server sequence.
type Registry struct {
	mu        sync.RWMutex
	values    map[string]StreamValue
	serverSeq int64
}

func NewRegistry() *Registry {
	return &Registry{
		values: make(map[string]StreamValue),
	}
}

// Apply validates and stores a push, returning the assigned server sequence.
func (r *Registry) Apply(p DataPushPayload) (int64, error) {
	if p.StreamID == "" {
		return 0, fmt.Errorf("missing stream id")
	}
	if len(p.Value) == 0 || !json.Valid(p.Value) {
		return 0, fmt.Errorf("invalid value for stream %s", p.StreamID)
	}

	ts := p.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.serverSeq++
	r.values[p.StreamID] = StreamValue{
		Value:     p.Value,
		Timestamp: ts,
		ServerSeq: r.serverSeq,
	}
	return r.serverSeq, nil
}

// Get returns the latest value for a stream.
func (r *Registry) Get(streamID string) (StreamValue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[streamID]
	return v, ok
}

// Snapshot returns a copy of every stream's latest value.
func (r *Registry) Snapshot() map[string]StreamValue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]StreamValue, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// ServerSeq returns the current sequence number.
func (r *Registry) ServerSeq() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.serverSeq
}

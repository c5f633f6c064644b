package core

import (
	"sort"
	"sync"
)

// DefaultRegistry is a thread-safe implementation of Registry.
type DefaultRegistry struct {
	mu       sync.RWMutex
	decoders map[Format]Decoder
	encoders map[Format]Encoder
}

// NewRegistry returns an empty DefaultRegistry.
func NewRegistry() *DefaultRegistry {
	return &DefaultRegistry{
		decoders: make(map[Format]Decoder),
		encoders: make(map[Format]Encoder),
	}
}

func (r *DefaultRegistry) RegisterDecoder(f Format, d Decoder) {
	r.mu.Lock()
	r.decoders[f] = d
	r.mu.Unlock()
}

func (r *DefaultRegistry) RegisterEncoder(f Format, e Encoder) {
	r.mu.Lock()
	r.encoders[f] = e
	r.mu.Unlock()
}

func (r *DefaultRegistry) DecoderFor(f Format) (Decoder, bool) {
	r.mu.RLock()
	d, ok := r.decoders[f]
	r.mu.RUnlock()
	return d, ok
}

func (r *DefaultRegistry) EncoderFor(f Format) (Encoder, bool) {
	r.mu.RLock()
	e, ok := r.encoders[f]
	r.mu.RUnlock()
	return e, ok
}

// CanEncode reports whether a registered encoder is usable for f.
func CanEncode(reg Registry, f Format) bool {
	enc, ok := reg.EncoderFor(f)
	return ok && enc.CanEncode(f)
}

// EncodableFormats lists the formats with a usable encoder, sorted by name.
func (r *DefaultRegistry) EncodableFormats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Format, 0, len(r.encoders))
	for f, e := range r.encoders {
		if e.CanEncode(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Package capability detects which WebP features the codec backend supports.
// Results are probed once per feature and cached for the process lifetime.
package capability

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Skryldev/imageprep/adapters"
	"github.com/Skryldev/imageprep/core"
)

// Feature names a WebP capability.
type Feature string

const (
	FeatureBasic     Feature = "basic"
	FeatureLossless  Feature = "lossless"
	FeatureAlpha     Feature = "alpha"
	FeatureAnimation Feature = "animation"
)

// Features lists every probed feature.
var Features = []Feature{FeatureBasic, FeatureLossless, FeatureAlpha, FeatureAnimation}

// Snapshot is the full capability set.
type Snapshot struct {
	Basic     bool
	Lossless  bool
	Alpha     bool
	Animation bool
	Full      bool // Basic && Lossless && Alpha
}

// Detector caches probe results.  Safe for concurrent use; concurrent first
// calls for one feature share a single probe.
type Detector struct {
	prober Prober
	logger core.Logger

	group singleflight.Group
	mu    sync.Mutex
	cache map[Feature]bool
	gen   uint64 // bumped by Reset; stale probes do not populate the cache
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger routes probe failures to l at debug level.
func WithLogger(l core.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// NewDetector returns a Detector running probes through p.
func NewDetector(p Prober, opts ...Option) *Detector {
	d := &Detector{prober: p, logger: core.NopLogger{}, cache: make(map[Feature]bool)}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Detector) cached(f Feature) (v, ok bool, gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok = d.cache[f]
	return v, ok, d.gen
}

// Supports reports whether f is supported, probing on first use.  Probe
// failures count as unsupported and are never returned.
func (d *Detector) Supports(ctx context.Context, f Feature) bool {
	v, ok, gen := d.cached(f)
	if ok {
		return v
	}

	// The probe outlives any single caller's cancellation: other callers may
	// be waiting on the same flight.
	probeCtx := context.WithoutCancel(ctx)
	res, _, _ := d.group.Do(flightKey(f, gen), func() (interface{}, error) {
		if v, ok, _ := d.cached(f); ok {
			return v, nil
		}
		ok, err := d.prober.Probe(probeCtx, f)
		if err != nil {
			d.logger.Debug("capability.probe.failed", "feature", string(f), "error", err.Error())
			ok = false
		}
		d.mu.Lock()
		if d.gen == gen {
			d.cache[f] = ok
		}
		d.mu.Unlock()
		return ok, nil
	})
	return res.(bool)
}

// Snapshot probes every feature and returns the combined result.
func (d *Detector) Snapshot(ctx context.Context) Snapshot {
	s := Snapshot{
		Basic:     d.Supports(ctx, FeatureBasic),
		Lossless:  d.Supports(ctx, FeatureLossless),
		Alpha:     d.Supports(ctx, FeatureAlpha),
		Animation: d.Supports(ctx, FeatureAnimation),
	}
	s.Full = s.Basic && s.Lossless && s.Alpha
	return s
}

// Reset drops every cached result so the next call probes again.  Probes
// already in flight still answer their callers but are not cached.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.cache = make(map[Feature]bool)
	d.gen++
	d.mu.Unlock()
}

// flightKey scopes a singleflight call to one cache generation.
func flightKey(f Feature, gen uint64) string {
	return string(f) + "@" + strconv.FormatUint(gen, 10)
}

var (
	sharedMu sync.Mutex
	shared   *Detector
)

// Shared returns the process-wide detector probing the native codec registry.
func Shared() *Detector {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		shared = NewDetector(RegistryProber{Registry: adapters.NewNativeRegistry(0)})
	}
	return shared
}

// ResetShared clears the process-wide detector's cache.
func ResetShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil {
		shared.Reset()
	}
}

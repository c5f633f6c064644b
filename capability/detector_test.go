package capability_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/imageprep/adapters"
	"github.com/Skryldev/imageprep/capability"
	"github.com/Skryldev/imageprep/core"
)

type fakeProber struct {
	calls   atomic.Int32
	results map[capability.Feature]bool
	err     error
	gate    chan struct{}
}

func (p *fakeProber) Probe(_ context.Context, f capability.Feature) (bool, error) {
	p.calls.Add(1)
	if p.gate != nil {
		<-p.gate
	}
	if p.err != nil {
		return false, p.err
	}
	return p.results[f], nil
}

func TestSupportsCachesResult(t *testing.T) {
	p := &fakeProber{results: map[capability.Feature]bool{capability.FeatureBasic: true}}
	d := capability.NewDetector(p)

	assert.True(t, d.Supports(context.Background(), capability.FeatureBasic))
	assert.True(t, d.Supports(context.Background(), capability.FeatureBasic))
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestConcurrentFirstCallsShareOneProbe(t *testing.T) {
	p := &fakeProber{
		results: map[capability.Feature]bool{capability.FeatureLossless: true},
		gate:    make(chan struct{}),
	}
	d := capability.NewDetector(p)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = d.Supports(context.Background(), capability.FeatureLossless)
		}(i)
	}

	// Let the callers pile up on the in-flight probe before releasing it.
	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(p.gate)
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
	for _, r := range results {
		assert.True(t, r)
	}
}

func TestProbeErrorMeansUnsupported(t *testing.T) {
	p := &fakeProber{err: errors.New("decoder exploded")}
	d := capability.NewDetector(p)

	assert.False(t, d.Supports(context.Background(), capability.FeatureAlpha))
	assert.False(t, d.Supports(context.Background(), capability.FeatureAlpha))
	assert.Equal(t, int32(1), p.calls.Load(), "failures are cached too")
}

func TestResetProbesAgain(t *testing.T) {
	p := &fakeProber{results: map[capability.Feature]bool{}}
	d := capability.NewDetector(p)

	assert.False(t, d.Supports(context.Background(), capability.FeatureBasic))
	p.results[capability.FeatureBasic] = true
	d.Reset()
	assert.True(t, d.Supports(context.Background(), capability.FeatureBasic))
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestResetDiscardsInFlightResult(t *testing.T) {
	p := &fakeProber{
		results: map[capability.Feature]bool{capability.FeatureBasic: true},
		gate:    make(chan struct{}),
	}
	d := capability.NewDetector(p)

	done := make(chan bool)
	go func() { done <- d.Supports(context.Background(), capability.FeatureBasic) }()
	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, time.Millisecond)

	d.Reset()
	close(p.gate)
	assert.True(t, <-done, "the in-flight caller still gets its answer")

	p.results[capability.FeatureBasic] = false
	assert.False(t, d.Supports(context.Background(), capability.FeatureBasic))
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestSnapshotFull(t *testing.T) {
	tests := []struct {
		name    string
		results map[capability.Feature]bool
		full    bool
	}{
		{"all", map[capability.Feature]bool{
			capability.FeatureBasic: true, capability.FeatureLossless: true,
			capability.FeatureAlpha: true, capability.FeatureAnimation: true,
		}, true},
		{"no animation still full", map[capability.Feature]bool{
			capability.FeatureBasic: true, capability.FeatureLossless: true, capability.FeatureAlpha: true,
		}, true},
		{"no alpha", map[capability.Feature]bool{
			capability.FeatureBasic: true, capability.FeatureLossless: true,
		}, false},
		{"nothing", map[capability.Feature]bool{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			snap := capability.NewDetector(&fakeProber{results: tc.results}).Snapshot(context.Background())
			assert.Equal(t, tc.full, snap.Full)
			assert.Equal(t, tc.results[capability.FeatureAnimation], snap.Animation)
		})
	}
}

func TestCancelledCallerStillGetsAnswer(t *testing.T) {
	p := &fakeProber{results: map[capability.Feature]bool{capability.FeatureBasic: true}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.True(t, capability.NewDetector(p).Supports(ctx, capability.FeatureBasic))
}

func TestRegistryProberNative(t *testing.T) {
	reg := adapters.NewNativeRegistry(0)
	prober := capability.RegistryProber{Registry: reg}

	ok, err := prober.Probe(context.Background(), capability.FeatureLossless)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = prober.Probe(context.Background(), capability.FeatureBasic)
	require.NoError(t, err)
	assert.Equal(t, core.CanEncode(reg, core.FormatWebP), ok)
}

func TestRegistryProberWithoutWebPDecoder(t *testing.T) {
	prober := capability.RegistryProber{Registry: core.NewRegistry()}
	ok, err := prober.Probe(context.Background(), capability.FeatureBasic)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSharedReset(t *testing.T) {
	d := capability.Shared()
	assert.Same(t, d, capability.Shared())
	capability.ResetShared()
	assert.Same(t, d, capability.Shared())
}

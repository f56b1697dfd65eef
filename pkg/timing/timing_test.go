// ABOUTME: Tests for host clock conversion and timestamps
// ABOUTME: Verifies round trips, monotonicity and validity flags
package timing

import (
	"math"
	"sync"
	"testing"
	"time"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	rate := TicksPerSecond()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Init()
		}()
	}
	wg.Wait()

	if rate <= 0 {
		t.Fatalf("expected positive tick rate, got %v", rate)
	}
	if TicksPerSecond() != rate {
		t.Errorf("tick rate changed from %v to %v", rate, TicksPerSecond())
	}
}

func TestSecondsTicksRoundTrip(t *testing.T) {
	resolution := 1 / TicksPerSecond()
	values := []float64{0, 1e-9, 0.001, 0.5, 1, 2.25, 60, 3600, 86400 * 7}

	for _, x := range values {
		got := SecondsFromTicks(TicksFromSeconds(x))
		if math.Abs(got-x) > resolution {
			t.Errorf("round trip %v: expected within %v, got %v", x, resolution, got)
		}
	}
}

func TestTicksFromNegativeSeconds(t *testing.T) {
	if got := TicksFromSeconds(-1); got != 0 {
		t.Errorf("expected 0 ticks, got %d", got)
	}
	if got := TicksFromSeconds(math.NaN()); got != 0 {
		t.Errorf("expected 0 ticks for NaN, got %d", got)
	}
}

func TestNowIsMonotonic(t *testing.T) {
	a := Now()
	time.Sleep(2 * time.Millisecond)
	b := Now()

	if b <= a {
		t.Fatalf("expected clock to advance: %d then %d", a, b)
	}
	elapsed := SecondsFromTicks(b - a)
	if elapsed < 0.001 || elapsed > 5 {
		t.Errorf("unexpected elapsed time %v", elapsed)
	}
	if NowSeconds() <= 0 {
		t.Error("expected positive NowSeconds")
	}
}

func TestTimestampFromTicks(t *testing.T) {
	if ts := TimestampFromTicks(0); !ts.IsNone() || ts != None {
		t.Errorf("expected None for zero ticks, got %v", ts)
	}

	ticks := TicksFromSeconds(1.5)
	ts := TimestampFromTicks(ticks)
	if !ts.HasHostTime() || ts.HasSampleTime() {
		t.Fatalf("expected host time only, got flags %b", ts.Flags)
	}
	secs, ok := ts.Seconds()
	if !ok || math.Abs(secs-1.5) > 1/TicksPerSecond() {
		t.Errorf("expected 1.5s, got %v (ok=%v)", secs, ok)
	}
}

func TestTimestampFromSamples(t *testing.T) {
	ts := TimestampFromSamples(44100)
	if !ts.HasSampleTime() || ts.HasHostTime() {
		t.Fatalf("expected sample time only, got flags %b", ts.Flags)
	}
	if ts.SampleTime != 44100 {
		t.Errorf("expected 44100, got %v", ts.SampleTime)
	}
	if _, ok := ts.Seconds(); ok {
		t.Error("expected no host seconds for sample timestamp")
	}

	// Zero is a valid sample position
	if TimestampFromSamples(0).IsNone() {
		t.Error("sample position 0 should not be None")
	}
}

func TestTimestampString(t *testing.T) {
	tests := []struct {
		ts   Timestamp
		want string
	}{
		{None, "none"},
		{TimestampFromTicks(42), "host=42"},
		{TimestampFromSamples(10), "sample=10"},
		{Timestamp{HostTicks: 7, SampleTime: 3, Flags: HostTimeValid | SampleTimeValid}, "host=7 sample=3"},
	}

	for _, tt := range tests {
		if got := tt.ts.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

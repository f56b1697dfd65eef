// ABOUTME: Timestamp value type with validity flags
// ABOUTME: Builds timestamps from host ticks or sample positions
package timing

import "fmt"

// Flags marks which fields of a Timestamp are valid
type Flags uint8

const (
	HostTimeValid Flags = 1 << iota
	SampleTimeValid
)

// Timestamp is an immutable point in time expressed in host ticks, sample
// position, or both.
type Timestamp struct {
	HostTicks  HostTicks
	SampleTime float64
	Flags      Flags
}

// None carries no timing information
var None = Timestamp{}

// TimestampFromTicks returns a host-time timestamp, or None for zero ticks
func TimestampFromTicks(ticks HostTicks) Timestamp {
	if ticks == 0 {
		return None
	}
	return Timestamp{HostTicks: ticks, Flags: HostTimeValid}
}

// TimestampFromSamples returns a sample-time timestamp
func TimestampFromSamples(samples float64) Timestamp {
	return Timestamp{SampleTime: samples, Flags: SampleTimeValid}
}

// IsNone reports whether no field is valid
func (t Timestamp) IsNone() bool {
	return t.Flags == 0
}

// HasHostTime reports whether HostTicks is valid
func (t Timestamp) HasHostTime() bool {
	return t.Flags&HostTimeValid != 0
}

// HasSampleTime reports whether SampleTime is valid
func (t Timestamp) HasSampleTime() bool {
	return t.Flags&SampleTimeValid != 0
}

// Seconds returns the host time in seconds and whether it is valid
func (t Timestamp) Seconds() (float64, bool) {
	if !t.HasHostTime() {
		return 0, false
	}
	return SecondsFromTicks(t.HostTicks), true
}

func (t Timestamp) String() string {
	switch {
	case t.IsNone():
		return "none"
	case t.HasHostTime() && t.HasSampleTime():
		return fmt.Sprintf("host=%d sample=%.0f", t.HostTicks, t.SampleTime)
	case t.HasHostTime():
		return fmt.Sprintf("host=%d", t.HostTicks)
	default:
		return fmt.Sprintf("sample=%.0f", t.SampleTime)
	}
}

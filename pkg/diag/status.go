// ABOUTME: Numeric result codes as errors
// ABOUTME: Renders four-character codes the way audio toolkits print them
package diag

import (
	"errors"
	"fmt"
)

// Status is a numeric result code reported by graph and writer collaborators.
// StatusOK denotes success and is never returned as an error.
type Status int32

const (
	StatusOK Status = 0

	// UnknownCode is reported for failures that carry no Status
	UnknownCode int32 = -1
)

func (s Status) Error() string {
	if fourcc, ok := s.fourCC(); ok {
		return fmt.Sprintf("status %d '%s'", int32(s), fourcc)
	}
	return fmt.Sprintf("status %d", int32(s))
}

// Err returns nil for StatusOK and s otherwise
func (s Status) Err() error {
	if s == StatusOK {
		return nil
	}
	return s
}

func (s Status) fourCC() (string, bool) {
	b := []byte{byte(uint32(s) >> 24), byte(uint32(s) >> 16), byte(uint32(s) >> 8), byte(uint32(s))}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return "", false
		}
	}
	return string(b), true
}

// CodeOf returns the numeric code of the first Status in err's chain,
// 0 for nil and UnknownCode otherwise.
func CodeOf(err error) int32 {
	if err == nil {
		return int32(StatusOK)
	}
	var s Status
	if errors.As(err, &s) {
		return int32(s)
	}
	return UnknownCode
}

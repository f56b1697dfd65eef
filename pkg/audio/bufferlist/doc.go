// ABOUTME: Multi-channel buffer set allocation package
// ABOUTME: Allocates sample storage matching an arbitrary audio.Format
// Package bufferlist allocates sets of per-channel sample buffers.
//
// A Set holds one buffer per channel for non-interleaved formats, or a single
// buffer carrying every channel for interleaved formats. Every buffer in a set
// has the same frame capacity. Storage is word aligned so float views can be
// taken without copying.
//
// Allocation may block in the Go allocator and must not happen on a
// time-sensitive path. Allocate once during setup, reuse the set for every
// block, and Free it on teardown.
//
// Example:
//
//	set, err := bufferlist.Allocate(audio.Canonical(48000, 2), 4096)
//	if err != nil {
//	    return err
//	}
//	defer set.Free()
//	left := set.Float64(0)
package bufferlist

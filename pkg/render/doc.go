// ABOUTME: Offline render session state machine
// ABOUTME: Package documentation for driving a source-to-destination render
// Package render converts an audio source file into a destination file on a
// background goroutine and reports progress to an observer.
//
// A session moves through Idle, Rendering and then Completed or Failed:
//
//	s, err := render.Create("in.flac", "out.wav")
//	if err != nil {
//		// *SetupError: no session was produced
//	}
//	defer s.Close()
//	render.Observe(s, myObserver)
//	err = s.StartRendering()
//
// The session holds its observer weakly. Events arrive in order on a
// dedicated goroutine: Progress events with non-decreasing progress, then
// exactly one Completed or Failed event. Nothing is delivered once Close
// has begun, and Close waits for a callback already running elsewhere.
// Every session must be closed to release its destination.
//
// The graph and writer are collaborators behind the Graph and Writer
// interfaces; the defaults decode WAV, MP3, FLAC and Ogg Opus sources and
// write WAV or Ogg Opus destinations.
package render

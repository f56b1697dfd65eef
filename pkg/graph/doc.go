// ABOUTME: Default render graph for offline rendering
// ABOUTME: Package documentation for the file-backed processing chain
// Package graph builds the render graph used by offline sessions: a file
// source, optional resampling to the destination rate, master gain and
// fade-in/fade-out ramps, producing canonical float blocks.
//
//	g, err := graph.Open("in.flac", graph.Options{SampleRate: 48000, GainDB: -3})
//	n, err := g.Render(ctx, set, 4096)
package graph

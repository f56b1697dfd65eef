// ABOUTME: Ogg bitstream page framing
// ABOUTME: Package documentation for the Ogg muxer and demuxer
// Package ogg frames packets into Ogg pages and reads them back.
//
// It handles a single logical bitstream, which is all an Ogg Opus file
// needs. Each written packet is flushed on its own page (or pages, when it
// exceeds the 255-segment lacing limit).
package ogg

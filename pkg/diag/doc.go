// ABOUTME: Result checking with rate-limited diagnostic reporting
// ABOUTME: Package documentation for the diagnostic checker
// Package diag turns operation results into a boolean continue/abort signal
// and reports failures to a rate-limited sink.
//
//	if !diag.Check(graph.Render(ctx, set, n), "render block") {
//		// caller decides whether this is fatal
//	}
//
// Check never panics. Failures are recorded with the caller's file and line
// and the numeric code of any wrapped Status.
package diag

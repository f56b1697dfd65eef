// ABOUTME: Tests for logger construction and progress sampling
// ABOUTME: Covers handler selection, level parsing and bucket thinning
package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFormats(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
		marker  string
	}{
		{"", false, "msg=hello"},
		{"text", false, "msg=hello"},
		{"JSON", false, `"msg":"hello"`},
		{"xml", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(Options{Format: tt.format, Output: &buf})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unsupported format")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			logger.Info("hello")
			if !strings.Contains(buf.String(), tt.marker) {
				t.Errorf("expected %q in %q", tt.marker, buf.String())
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Output: &buf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Info("quiet")
	logger.Warn("loud")

	if strings.Contains(buf.String(), "quiet") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "loud") {
		t.Error("warn message should pass at warn level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" Warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 10},
		{"default bucket size for negative", -1, 10},
		{"custom bucket size", 25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
		})
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)

	var logged []float64
	for i := 0; i <= 100; i++ {
		f := float64(i) / 100
		if s.ShouldLog(f) {
			logged = append(logged, f)
		}
	}

	if len(logged) != 11 {
		t.Fatalf("expected 11 log points, got %d: %v", len(logged), logged)
	}
	if logged[0] != 0 || logged[10] != 1 {
		t.Errorf("expected first 0 and last 1, got %v and %v", logged[0], logged[10])
	}

	if s.ShouldLog(-1) {
		t.Error("unknown progress should not log")
	}

	s.Reset()
	if !s.ShouldLog(0.5) {
		t.Error("expected log after reset")
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(0.5) {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

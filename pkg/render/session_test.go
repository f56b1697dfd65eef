// ABOUTME: Tests for render session lifecycle and event delivery
// ABOUTME: Uses fake graphs and writers alongside real WAV round trips
package render

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sendspin/offline-render/internal/logging"
	"github.com/Sendspin/offline-render/pkg/audio"
	"github.com/Sendspin/offline-render/pkg/audio/bufferlist"
	"github.com/Sendspin/offline-render/pkg/audio/decode"
	"github.com/Sendspin/offline-render/pkg/audio/encode"
	"github.com/Sendspin/offline-render/pkg/diag"
	"github.com/Sendspin/offline-render/pkg/graph"
)

type fakeGraph struct {
	format  audio.Format
	total   int64
	pos     int64
	delay   time.Duration
	started chan struct{}
	once    sync.Once
	closed  atomic.Bool
}

func newFakeGraph(total int64) *fakeGraph {
	return &fakeGraph{
		format:  audio.Canonical(8000, 2),
		total:   total,
		started: make(chan struct{}),
	}
}

func (g *fakeGraph) Format() audio.Format { return g.format }
func (g *fakeGraph) TotalFrames() int64   { return g.total }

func (g *fakeGraph) Render(ctx context.Context, set *bufferlist.Set, frames int) (int, error) {
	g.once.Do(func() { close(g.started) })
	if g.delay > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(g.delay):
		}
	}
	n := int64(frames)
	if g.total >= 0 {
		n = min(n, g.total-g.pos)
	}
	if n <= 0 {
		return 0, io.EOF
	}
	for ch := range set.Channels() {
		data := set.Float64(ch)
		for i := range int(n) {
			data[i] = 0.5
		}
	}
	g.pos += n
	return int(n), nil
}

func (g *fakeGraph) Close() error {
	g.closed.Store(true)
	return nil
}

type fakeWriter struct {
	failAt int
	err    error
	writes int
	frames int64
	closed int
}

func (w *fakeWriter) Write(set *bufferlist.Set, frames int) error {
	w.writes++
	if w.failAt > 0 && w.writes == w.failAt {
		return w.err
	}
	w.frames += int64(frames)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed++
	return nil
}

type recorder struct {
	mu        sync.Mutex
	events    []Event
	terminals int
	terminal  chan struct{}
	onEvent   func(s *Session, e Event)
}

func newRecorder() *recorder {
	return &recorder{terminal: make(chan struct{})}
}

func (r *recorder) OnEvent(s *Session, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	first := false
	if e.Kind != EventProgress {
		r.terminals++
		first = r.terminals == 1
	}
	r.mu.Unlock()

	if r.onEvent != nil {
		r.onEvent(s, e)
	}
	if first {
		close(r.terminal)
	}
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) waitTerminal(t *testing.T) {
	t.Helper()
	select {
	case <-r.terminal:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for terminal event")
	}
}

type quietSink struct {
	mu    sync.Mutex
	count int
	last  diag.Diagnostic
}

func (q *quietSink) Report(d diag.Diagnostic) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.count++
	q.last = d
}

func testOptions(g Graph, w Writer, extra ...Option) []Option {
	opts := []Option{
		WithLogger(logging.Discard()),
		WithChecker(diag.Checker{Sink: &quietSink{}}),
		WithBlockFrames(256),
		WithGraphBuilder(func(string, graph.Options) (Graph, error) { return g, nil }),
		WithWriterFactory(func(string, audio.Format, encode.Options) (Writer, error) { return w, nil }),
	}
	return append(opts, extra...)
}

func writeMonoWAV(t *testing.T, path string, rate float64, frames int) {
	t.Helper()
	set, err := bufferlist.Allocate(audio.Canonical(rate, 1), frames)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	defer set.Free()
	data := set.Float64(0)
	for i := range data {
		data[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/rate)
	}
	w, err := encode.Create(path, set.Format(), encode.DefaultOptions())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := w.Write(set, frames); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestRenderWAVFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.wav")
	dst := filepath.Join(dir, "out.wav")
	writeMonoWAV(t, src, 8000, 16000)

	s, err := Create(src, dst, WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer s.Close()

	rec := newRecorder()
	Observe(s, rec)

	if s.State() != Idle {
		t.Errorf("expected idle, got %s", s.State())
	}
	if err := s.StartRendering(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	rec.waitTerminal(t)
	<-s.Done()

	if s.State() != Completed {
		t.Errorf("expected completed, got %s", s.State())
	}
	if s.Progress() != 1 {
		t.Errorf("expected progress 1, got %v", s.Progress())
	}
	if s.LastError() != nil {
		t.Errorf("expected no error, got %v", s.LastError())
	}

	events := rec.snapshot()
	last := events[len(events)-1]
	if last.Kind != EventCompleted || last.Frames != 16000 {
		t.Errorf("expected completed with 16000 frames, got %s with %d", last.Kind, last.Frames)
	}
	for _, e := range events[:len(events)-1] {
		if e.Kind != EventProgress {
			t.Errorf("expected progress before completion, got %s", e.Kind)
		}
		if e.Progress >= 1 {
			t.Errorf("expected progress below 1 before completion, got %v", e.Progress)
		}
	}

	out, err := decode.Open(dst)
	if err != nil {
		t.Fatalf("open output failed: %v", err)
	}
	defer out.Close()
	if out.Frames() != 16000 {
		t.Errorf("expected 16000 output frames, got %d", out.Frames())
	}
	if out.Format().SampleRate != 8000 || out.Format().Channels != 1 {
		t.Errorf("expected 8000 Hz mono, got %s", out.Format())
	}
}

func TestCreateUnreadableSource(t *testing.T) {
	dir := t.TempDir()
	s, err := Create(filepath.Join(dir, "missing.wav"), filepath.Join(dir, "out.wav"),
		WithLogger(logging.Discard()))
	if s != nil {
		t.Error("expected no session")
	}
	var setup *SetupError
	if !errors.As(err, &setup) {
		t.Fatalf("expected SetupError, got %v", err)
	}
	if setup.Op != "build graph" {
		t.Errorf("expected build graph failure, got %q", setup.Op)
	}
}

func TestCreateValidation(t *testing.T) {
	dir := t.TempDir()
	same := filepath.Join(dir, "a.wav")

	tests := []struct {
		name string
		src  string
		dst  string
		opts []Option
		want error
	}{
		{"empty source", "", "out.wav", nil, ErrInvalidLocator},
		{"blank destination", "in.wav", "  ", nil, ErrInvalidLocator},
		{"destination is source", same, same, nil, ErrInvalidLocator},
		{"zero block", "in.wav", "out.wav", []Option{WithBlockFrames(0)}, ErrAllocation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{WithLogger(logging.Discard())}, tt.opts...)
			s, err := Create(tt.src, tt.dst, opts...)
			if s != nil {
				t.Error("expected no session")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateReleasesGraphWhenWriterFails(t *testing.T) {
	g := newFakeGraph(1000)
	s, err := Create("in", "out",
		WithLogger(logging.Discard()),
		WithGraphBuilder(func(string, graph.Options) (Graph, error) { return g, nil }),
		WithWriterFactory(func(string, audio.Format, encode.Options) (Writer, error) {
			return nil, encode.ErrUnsupportedFormat
		}),
	)
	if s != nil {
		t.Error("expected no session")
	}
	if !errors.Is(err, encode.ErrUnsupportedFormat) {
		t.Errorf("expected unsupported format, got %v", err)
	}
	if !g.closed.Load() {
		t.Error("expected graph to be closed")
	}
}

func TestOpusDestinationRendersAt48k(t *testing.T) {
	src := filepath.Join(t.TempDir(), "in.wav")
	writeMonoWAV(t, src, 8000, 800)

	var got audio.Format
	s, err := Create(src, filepath.Join(t.TempDir(), "out.opus"),
		WithLogger(logging.Discard()),
		WithWriterFactory(func(_ string, f audio.Format, _ encode.Options) (Writer, error) {
			got = f
			return &fakeWriter{}, nil
		}),
	)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer s.Close()

	if got.SampleRate != encode.OpusRate {
		t.Errorf("expected %v Hz writer, got %v", encode.OpusRate, got.SampleRate)
	}
	if s.TotalFrames() != 4800 {
		t.Errorf("expected 4800 frames after resampling, got %d", s.TotalFrames())
	}
}

func TestWriterFailureMidRender(t *testing.T) {
	g := newFakeGraph(10000)
	w := &fakeWriter{failAt: 3, err: diag.Status(-36)}

	s, err := Create("in", "out", testOptions(g, w)...)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer s.Close()

	rec := newRecorder()
	Observe(s, rec)
	if err := s.StartRendering(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	rec.waitTerminal(t)
	<-s.Done()
	s.events.wait()

	events := rec.snapshot()
	if len(events) != 3 {
		t.Fatalf("expected 2 progress events and 1 failure, got %d events", len(events))
	}
	last := events[2]
	if last.Kind != EventFailed {
		t.Fatalf("expected failure last, got %s", last.Kind)
	}
	if last.Frames != 512 {
		t.Errorf("expected 512 frames before failure, got %d", last.Frames)
	}

	if s.State() != Failed {
		t.Errorf("expected failed, got %s", s.State())
	}
	var ge *GraphError
	if !errors.As(s.LastError(), &ge) {
		t.Fatalf("expected GraphError, got %v", s.LastError())
	}
	if ge.Code != -36 || ge.Op != "write block" {
		t.Errorf("expected write block code -36, got %s code %d", ge.Op, ge.Code)
	}
	if !errors.Is(last.Err, diag.Status(-36)) {
		t.Errorf("expected event error to wrap status, got %v", last.Err)
	}
	if w.closed != 0 {
		t.Error("expected writer to stay open until Close")
	}
}

func TestFailureIsReportedToChecker(t *testing.T) {
	g := newFakeGraph(10000)
	w := &fakeWriter{failAt: 1, err: errors.New("disk full")}
	sink := &quietSink{}

	s, err := Create("in", "out", testOptions(g, w, WithChecker(diag.Checker{Sink: sink}))...)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer s.Close()

	if err := s.StartRendering(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	<-s.Done()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.count != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", sink.count)
	}
	if sink.last.Operation != "write block" || sink.last.Code != diag.UnknownCode {
		t.Errorf("expected write block with unknown code, got %s %d", sink.last.Operation, sink.last.Code)
	}
}

func TestCloseMidRender(t *testing.T) {
	g := newFakeGraph(-1)
	g.delay = 5 * time.Millisecond
	w := &fakeWriter{}

	s, err := Create("in", "out", testOptions(g, w)...)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	rec := newRecorder()
	Observe(s, rec)
	if err := s.StartRendering(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	<-g.started
	time.Sleep(20 * time.Millisecond)

	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("expected render goroutine to have exited")
	}
	before := len(rec.snapshot())
	time.Sleep(20 * time.Millisecond)

	if n := len(rec.snapshot()); n != before {
		t.Errorf("expected no events after Close, got %d more", n-before)
	}
	for _, e := range rec.snapshot() {
		if e.Kind != EventProgress {
			t.Errorf("expected no terminal event, got %s", e.Kind)
		}
	}
	if s.State().Terminal() {
		t.Errorf("expected non-terminal state, got %s", s.State())
	}
	if s.Progress() != 0 {
		t.Errorf("expected progress 0 for unknown length, got %v", s.Progress())
	}
	if !g.closed.Load() || w.closed != 1 {
		t.Error("expected graph and writer to be released")
	}
	if err := s.Close(); err != nil {
		t.Errorf("expected second Close to succeed, got %v", err)
	}
}

func TestStartRenderingTwice(t *testing.T) {
	s, err := Create("in", "out", testOptions(newFakeGraph(1000), &fakeWriter{})...)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer s.Close()

	if err := s.StartRendering(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.StartRendering(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
	<-s.Done()
	if err := s.StartRendering(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState after completion, got %v", err)
	}
}

func TestStartAfterClose(t *testing.T) {
	g := newFakeGraph(1000)
	s, err := Create("in", "out", testOptions(g, &fakeWriter{})...)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := s.StartRendering(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
	if !g.closed.Load() {
		t.Error("expected graph to be closed")
	}
	if s.State() != Idle {
		t.Errorf("expected idle, got %s", s.State())
	}
}

func TestCloseFromObserver(t *testing.T) {
	s, err := Create("in", "out", testOptions(newFakeGraph(1000), &fakeWriter{})...)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	closed := make(chan error, 1)
	rec := newRecorder()
	rec.onEvent = func(s *Session, e Event) {
		if e.Kind == EventCompleted {
			closed <- s.Close()
		}
	}
	Observe(s, rec)

	if err := s.StartRendering(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	select {
	case err := <-closed:
		if err != nil {
			t.Errorf("expected close to succeed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out closing from observer")
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	s, err := Create("in", "out", testOptions(newFakeGraph(5000), &fakeWriter{})...)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer s.Close()

	var fn ObserverFunc
	var mu sync.Mutex
	var seen []float64
	done := make(chan struct{})
	fn = func(_ *Session, e Event) {
		mu.Lock()
		seen = append(seen, e.Progress)
		mu.Unlock()
		if e.Kind == EventCompleted {
			close(done)
		}
	}
	Observe(s, &fn)

	if err := s.StartRendering(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for completion")
	}

	mu.Lock()
	defer mu.Unlock()
	// 5000 frames in 256-frame blocks plus the completion event
	if len(seen) != 21 {
		t.Errorf("expected 21 events, got %d", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Errorf("progress went backwards at %d: %v after %v", i, seen[i], seen[i-1])
		}
	}
	if seen[len(seen)-1] != 1 {
		t.Errorf("expected final progress 1, got %v", seen[len(seen)-1])
	}
	runtime.KeepAlive(&fn)
}

func TestCollectedObserverDropsEvents(t *testing.T) {
	s, err := Create("in", "out", testOptions(newFakeGraph(2000), &fakeWriter{})...)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer s.Close()

	var delivered atomic.Int32
	func() {
		rec := newRecorder()
		rec.onEvent = func(*Session, Event) { delivered.Add(1) }
		Observe(s, rec)
	}()
	runtime.GC()
	runtime.GC()

	if err := s.StartRendering(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	<-s.Done()
	s.events.wait()

	if s.State() != Completed {
		t.Errorf("expected completed, got %s", s.State())
	}
	if n := delivered.Load(); n != 0 {
		t.Errorf("expected no deliveries to a collected observer, got %d", n)
	}
}

func TestClearObserver(t *testing.T) {
	s, err := Create("in", "out", testOptions(newFakeGraph(1000), &fakeWriter{})...)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer s.Close()

	rec := newRecorder()
	Observe(s, rec)
	Observe[recorder](s, nil)

	if err := s.StartRendering(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	<-s.Done()
	s.events.wait()

	if n := len(rec.snapshot()); n != 0 {
		t.Errorf("expected no events after clearing, got %d", n)
	}
}

func TestElapsed(t *testing.T) {
	g := newFakeGraph(512)
	g.delay = 2 * time.Millisecond
	s, err := Create("in", "out", testOptions(g, &fakeWriter{}, WithLogger(slog.New(slog.DiscardHandler)))...)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer s.Close()

	if s.Elapsed() != 0 {
		t.Errorf("expected 0 elapsed before start, got %v", s.Elapsed())
	}
	if err := s.StartRendering(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	<-s.Done()

	e := s.Elapsed()
	if e <= 0 {
		t.Errorf("expected positive elapsed time, got %v", e)
	}
	time.Sleep(5 * time.Millisecond)
	if s.Elapsed() != e {
		t.Error("expected elapsed time to stop at completion")
	}
}

func TestFanout(t *testing.T) {
	s, err := Create("in", "out", testOptions(newFakeGraph(600), &fakeWriter{})...)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer s.Close()

	a, b := newRecorder(), newRecorder()
	fan := NewFanout(a, nil, b)
	Observe(s, fan)

	if err := s.StartRendering(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	a.waitTerminal(t)
	b.waitTerminal(t)

	if len(a.snapshot()) != 4 || len(b.snapshot()) != 4 {
		t.Errorf("expected 4 events each, got %d and %d", len(a.snapshot()), len(b.snapshot()))
	}
	runtime.KeepAlive(fan)
}

func TestFanoutStopsAfterClose(t *testing.T) {
	s, err := Create("in", "out", testOptions(newFakeGraph(600), &fakeWriter{})...)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	entered, release := make(chan struct{}), make(chan struct{})
	slow := newRecorder()
	slow.onEvent = func(_ *Session, e Event) {
		if e.Kind == EventCompleted {
			close(entered)
			<-release
		}
	}
	late := newRecorder()
	fan := NewFanout(slow, late)
	Observe(s, fan)

	if err := s.StartRendering(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for completion")
	}

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()
	for !s.closing() {
		time.Sleep(time.Millisecond)
	}

	select {
	case <-closed:
		t.Fatal("expected Close to wait for the callback in progress")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("close failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Close")
	}

	if len(slow.snapshot()) != 4 {
		t.Errorf("expected 4 events for the first observer, got %d", len(slow.snapshot()))
	}
	for _, e := range late.snapshot() {
		if e.Kind != EventProgress {
			t.Errorf("expected no terminal event once Close began, got %s", e.Kind)
		}
	}
	runtime.KeepAlive(fan)
}

func TestCloseWithoutStart(t *testing.T) {
	g, w := newFakeGraph(100), &fakeWriter{}
	s, err := Create("in", "out", testOptions(g, w)...)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if s.events != nil {
		t.Error("expected no event dispatcher before StartRendering")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	select {
	case <-s.Done():
	default:
		t.Error("expected Done to be closed")
	}
	if !g.closed.Load() || w.closed != 1 {
		t.Error("expected graph and writer to be released")
	}
	if err := s.StartRendering(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState after Close, got %v", err)
	}
}

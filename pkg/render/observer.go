// ABOUTME: Weakly held observer registration and FIFO event dispatch
// ABOUTME: Events are queued by the render loop and delivered on their own goroutine
package render

import (
	"runtime"
	"strings"
	"sync"
	"weak"
)

// Observer receives session events
type Observer interface {
	OnEvent(s *Session, e Event)
}

// ObserverFunc adapts a function to Observer. A func value cannot be held
// weakly, so register it through a pointer: render.Observe(s, &fn).
type ObserverFunc func(s *Session, e Event)

func (f *ObserverFunc) OnEvent(s *Session, e Event) { (*f)(s, e) }

// Observe registers o as the session's observer without keeping it alive.
// Once o is garbage collected its events are dropped. Passing nil clears
// the registration.
func Observe[T any, PT interface {
	*T
	Observer
}](s *Session, o PT) {
	if o == nil {
		s.setObserver(nil)
		return
	}
	wp := weak.Make((*T)(o))
	s.setObserver(func() Observer {
		p := wp.Value()
		if p == nil {
			return nil
		}
		return PT(p)
	})
}

// dispatcher delivers queued events in order on one goroutine
type dispatcher struct {
	mu      sync.Mutex
	queue   []Event
	notify  chan struct{}
	stop    chan struct{}
	done    chan struct{}
	deliver func(Event)

	stopOnce sync.Once
}

func newDispatcher(deliver func(Event)) *dispatcher {
	d := &dispatcher{
		notify:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		deliver: deliver,
	}
	go d.run()
	return d
}

func (d *dispatcher) push(e Event) {
	d.mu.Lock()
	d.queue = append(d.queue, e)
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.stop:
			return
		case <-d.notify:
		}

		for {
			d.mu.Lock()
			if len(d.queue) == 0 {
				d.mu.Unlock()
				break
			}
			e := d.queue[0]
			d.queue = d.queue[1:]
			d.mu.Unlock()

			d.deliver(e)
			if e.Kind != EventProgress {
				// Terminal events are always last
				return
			}
		}
	}
}

// shutdown stops the dispatch goroutine. It does not wait for an in-flight
// callback, so observers may call Session.Close from OnEvent.
func (d *dispatcher) shutdown() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// wait blocks until the dispatch goroutine has exited
func (d *dispatcher) wait() {
	<-d.done
}

// onDispatcher reports whether the caller is running on a dispatch goroutine,
// i.e. inside an observer callback
func onDispatcher() bool {
	pcs := make([]uintptr, 64)
	for {
		n := runtime.Callers(2, pcs)
		if n < len(pcs) {
			pcs = pcs[:n]
			break
		}
		pcs = make([]uintptr, 2*len(pcs))
	}

	frames := runtime.CallersFrames(pcs)
	for {
		f, more := frames.Next()
		if strings.HasSuffix(f.Function, ".(*dispatcher).run") {
			return true
		}
		if !more {
			return false
		}
	}
}

// Fanout forwards each event to several observers in order. The observers
// are held strongly; the Fanout itself is held weakly like any observer.
type Fanout struct {
	observers []Observer
}

// NewFanout returns a Fanout over the non-nil observers
func NewFanout(observers ...Observer) *Fanout {
	f := &Fanout{}
	for _, o := range observers {
		if o != nil {
			f.observers = append(f.observers, o)
		}
	}
	return f
}

// OnEvent forwards e to each observer until the session starts closing
func (f *Fanout) OnEvent(s *Session, e Event) {
	for _, o := range f.observers {
		if s != nil && s.closing() {
			return
		}
		o.OnEvent(s, e)
	}
}

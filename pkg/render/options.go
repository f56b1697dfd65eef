// ABOUTME: Session construction options and default collaborators
// ABOUTME: Wires the file graph and file writers unless overridden
package render

import (
	"log/slog"

	"github.com/Sendspin/offline-render/pkg/audio"
	"github.com/Sendspin/offline-render/pkg/audio/encode"
	"github.com/Sendspin/offline-render/pkg/diag"
	"github.com/Sendspin/offline-render/pkg/graph"
)

// DefaultBlockFrames is the render block length
const DefaultBlockFrames = 4096

// GraphBuilder builds the render graph for a source locator
type GraphBuilder func(source string, opts graph.Options) (Graph, error)

// WriterFactory creates the destination writer for blocks of format
type WriterFactory func(destination string, format audio.Format, opts encode.Options) (Writer, error)

type config struct {
	blockFrames   int
	buildGraph    GraphBuilder
	createWriter  WriterFactory
	graphOptions  graph.Options
	writerOptions encode.Options
	logger        *slog.Logger
	checker       diag.Checker
}

func defaultConfig() config {
	return config{
		blockFrames:   DefaultBlockFrames,
		buildGraph:    DefaultGraphBuilder,
		createWriter:  DefaultWriterFactory,
		writerOptions: encode.DefaultOptions(),
		logger:        slog.Default(),
	}
}

// Option configures a session
type Option func(*config)

// WithBlockFrames sets the number of frames rendered per block
func WithBlockFrames(n int) Option {
	return func(c *config) {
		c.blockFrames = n
	}
}

// WithGraphBuilder replaces the default file graph
func WithGraphBuilder(b GraphBuilder) Option {
	return func(c *config) {
		c.buildGraph = b
	}
}

// WithWriterFactory replaces the default file writers
func WithWriterFactory(f WriterFactory) Option {
	return func(c *config) {
		c.createWriter = f
	}
}

// WithGraphOptions sets rate, gain and fades for the graph
func WithGraphOptions(o graph.Options) Option {
	return func(c *config) {
		c.graphOptions = o
	}
}

// WithDestinationFormat sets the stored sample format of the destination
func WithDestinationFormat(o encode.Options) Option {
	return func(c *config) {
		c.writerOptions = o
	}
}

// WithLogger sets the session logger
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithChecker routes block-level diagnostics to a specific sink
func WithChecker(ch diag.Checker) Option {
	return func(c *config) {
		c.checker = ch
	}
}

// DefaultGraphBuilder opens source with the file graph
func DefaultGraphBuilder(source string, opts graph.Options) (Graph, error) {
	g, err := graph.Open(source, opts)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// DefaultWriterFactory creates a WAV or Ogg Opus writer by extension
func DefaultWriterFactory(destination string, format audio.Format, opts encode.Options) (Writer, error) {
	w, err := encode.Create(destination, format, opts)
	if err != nil {
		return nil, err
	}
	return w, nil
}

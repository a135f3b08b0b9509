package cmd

// Options holds the shared command-line options for the gitpulse CLI.
type Options struct {
	Format      string
	Since       string
	Verbosity   int
	Concurrency int
	Reset       bool // discard persisted state and treat this as a first poll
	NoGitHub    bool
	NoGitLab    bool
}

// Option is a functional option for configuring Options.
type Option func(*Options)

// NewOptions creates a new Options with defaults and applies any provided
// options.
func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithFormat sets the output format (table, json, markdown).
func WithFormat(format string) Option {
	return func(o *Options) {
		o.Format = format
	}
}

// WithSince sets the poll window (e.g. "2d", "1w").
func WithSince(since string) Option {
	return func(o *Options) {
		o.Since = since
	}
}

// WithVerbosity sets the verbosity level.
func WithVerbosity(v int) Option {
	return func(o *Options) {
		o.Verbosity = v
	}
}

// WithConcurrency sets the number of concurrent notification builds.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		o.Concurrency = n
	}
}

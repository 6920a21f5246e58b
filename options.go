package resultset

import "go.uber.org/zap"

// Options configure a Cursor. The toml tags match the [reader] section of
// the configuration file.
type Options struct {
	CaseInsensitiveNames bool        `toml:"case_insensitive_names"`
	Logger               *zap.Logger `toml:"-"`
}

func DefaultOptions() Options {
	return Options{
		CaseInsensitiveNames: true,
		Logger:               zap.NewNop(),
	}
}

type Option func(*Options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

func WithCaseInsensitiveNames(enabled bool) Option {
	return func(o *Options) {
		o.CaseInsensitiveNames = enabled
	}
}

// WithOptions replaces every setting at once, keeping the current logger
// when opts carries none.
func WithOptions(opts Options) Option {
	return func(o *Options) {
		logger := o.Logger
		*o = opts
		if o.Logger == nil {
			o.Logger = logger
		}
	}
}

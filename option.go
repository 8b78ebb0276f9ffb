package unixtransport

// options holds the configuration for a transport.
type options struct {
	logger Logger

	// abstract selects the Linux abstract-namespace address form.
	abstract bool
	// unixFDs enables descriptor passing. Normally flipped on after the
	// authentication layer negotiates the capability; see
	// Transport.SetUnixFDSupport.
	unixFDs bool
}

// Option is a function that configures transport options.
type Option func(*options)

// checkOptions validates and sets default values for transport options.
func checkOptions(opts *options) error {
	if opts.logger == nil {
		opts.logger = defaultLogger()
	}
	return nil
}

// AbstractOption returns an Option that selects the Linux
// abstract-namespace form of the socket address. The path is then a name
// in the abstract namespace rather than a filesystem path.
func AbstractOption() Option {
	return func(o *options) {
		o.abstract = true
	}
}

// UnixFDOption returns an Option that enables or disables descriptor
// passing from the start. Without it the transport reads plain bytes
// until SetUnixFDSupport is called.
func UnixFDOption(enabled bool) Option {
	return func(o *options) {
		o.unixFDs = enabled
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

package unixtransport

import (
	"testing"
)

func TestAbstractOption(t *testing.T) {
	var opts options
	AbstractOption()(&opts)

	if !opts.abstract {
		t.Error("abstract not set")
	}
}

func TestUnixFDOption(t *testing.T) {
	var opts options
	UnixFDOption(true)(&opts)

	if !opts.unixFDs {
		t.Error("unixFDs not set")
	}
}

func TestLoggerOption(t *testing.T) {
	logger := &mockLogger{}

	var opts options
	LoggerOption(logger)(&opts)

	if opts.logger != logger {
		t.Error("logger not set correctly")
	}
}

func TestCheckOptions_DefaultLogger(t *testing.T) {
	var opts options
	if err := checkOptions(&opts); err != nil {
		t.Fatalf("checkOptions failed: %v", err)
	}
	if opts.logger == nil {
		t.Error("default logger not set")
	}
}

func TestOptions_Multiple(t *testing.T) {
	logger := &mockLogger{}

	var opts options
	for _, opt := range []Option{
		AbstractOption(),
		UnixFDOption(true),
		LoggerOption(logger),
	} {
		opt(&opts)
	}

	if !opts.abstract {
		t.Error("abstract not set")
	}
	if !opts.unixFDs {
		t.Error("unixFDs not set")
	}
	if opts.logger != logger {
		t.Error("logger not set")
	}
}

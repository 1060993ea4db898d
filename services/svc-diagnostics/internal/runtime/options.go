package runtime

import (
	"io"
	"os"
)

type ServiceOption func(*ServiceCtx)

func WithServiceTermination(ch chan os.Signal) ServiceOption {
	return func(s *ServiceCtx) {
		s.shutdownChannel = ch
	}
}

func WithWaitingForServer() ServiceOption {
	return func(s *ServiceCtx) {
		s.serverReady = make(chan struct{})
	}
}

// WithDependencyOptions appends options applied after the defaults, e.g. to
// swap a store in tests.
func WithDependencyOptions(opts ...DependencyOption) ServiceOption {
	return func(s *ServiceCtx) {
		s.extraOptions = append(s.extraOptions, opts...)
	}
}

// WithLogOutput redirects service logs, keeping stdout free for reports.
func WithLogOutput(w io.Writer) ServiceOption {
	return func(s *ServiceCtx) {
		s.logOutput = w
	}
}

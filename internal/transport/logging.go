package transport

import (
	applog "rfsynth/internal/log"
)

// LoggingTransport implements the Transport interface by logging frames at
// debug level. Useful when no network sink is configured.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received frame.
func (lt *LoggingTransport) Send(data any) error {
	applog.Debugf("Transport: frame (%T): %+v", data, data)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)

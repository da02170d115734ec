package squashfs

import "github.com/sirupsen/logrus"

// nullLogger is used when no logger is configured via WithLogger, so call
// sites never need a nil check.
var nullLogger = func() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}()

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

package log

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
)

// PahoLogger adapts a logr.Logger to the Println/Printf logger shape used by
// the paho and autopaho debug hooks.
type PahoLogger struct {
	l       logr.Logger
	isError bool
}

// NewPahoLogger returns a paho logger writing to the process logger under name.
// Error loggers log at error level, the rest at logr verbosity 1 (zap debug).
func NewPahoLogger(name string, isError bool) *PahoLogger {
	return &PahoLogger{l: Logr().WithName(name), isError: isError}
}

func (p *PahoLogger) Println(v ...any) {
	p.emit(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (p *PahoLogger) Printf(format string, v ...any) {
	p.emit(strings.TrimSuffix(fmt.Sprintf(format, v...), "\n"))
}

func (p *PahoLogger) emit(msg string) {
	if p.isError {
		p.l.Error(nil, msg)
		return
	}
	p.l.V(1).Info(msg)
}

package log

import (
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
)

func TestPahoLogger(t *testing.T) {
	var lines []string
	sink := funcr.New(func(prefix, args string) {
		lines = append(lines, prefix+" "+args)
	}, funcr.Options{Verbosity: 1})

	tests := []struct {
		name    string
		isError bool
		write   func(p *PahoLogger)
		want    string
	}{
		{"println", false, func(p *PahoLogger) { p.Println("connected", 1) }, `"msg"="connected 1"`},
		{"printf", false, func(p *PahoLogger) { p.Printf("queue %d\n", 3) }, `"msg"="queue 3"`},
		{"error", true, func(p *PahoLogger) { p.Printf("boom") }, `"msg"="boom"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines = nil
			p := &PahoLogger{l: sink.WithName("paho"), isError: tt.isError}
			tt.write(p)
			if assert.Len(t, lines, 1) {
				assert.Contains(t, lines[0], tt.want)
			}
		})
	}
}

package exampleapp

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gosuri/uilive"
)

// progress keeps one line of output per operation and redraws all of them
// every time one changes
type progress struct {
	mu       sync.Mutex
	writer   *uilive.Writer
	messages []string
}

func newProgress(out io.Writer, size int) *progress {
	writer := uilive.New()
	writer.Out = out
	writer.Start()
	return &progress{writer: writer, messages: make([]string, size)}
}

func (p *progress) send(i int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[i] = body
	var lines []string
	for _, line := range p.messages {
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}
	fmt.Fprintln(p.writer, strings.Join(lines, "\n"))
	_ = p.writer.Flush()
}

func (p *progress) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer.Stop()
}

// Package progressbar implements functionality of printing a progress
// bar to the terminal window
package progressbar

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressBar implements a progress bar which is redrawn in place each
// time it is incremented. A ProgressBar is safe for concurrent use.
type ProgressBar struct {
	mu sync.Mutex
	w  io.Writer

	// width determines the number of characters wide that the progress
	// bar should be
	width float64

	// maxProgress determines the number of times Increment() should
	// be called before the progress bar reaches 100%.
	maxProgress float64

	// currentProgress measures the number of times Increment() was
	// called
	currentProgress float64

	postfix   string
	startTime time.Time
	closed    bool
}

// NewProgressBar returns a new progress bar that is width characters
// wide, reaches 100% capacity after max Increment() calls, and is
// drawn to w.
func NewProgressBar(w io.Writer, width, max int) *ProgressBar {
	if max <= 0 {
		max = 1
	}
	return &ProgressBar{
		w:           w,
		width:       float64(width),
		maxProgress: float64(max),
		startTime:   time.Now(),
	}
}

// Increment increments the internal progress counter and redraws the
// progress bar. Each time an iteration is performed, Increment should
// be called.
func (p *ProgressBar) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	if p.currentProgress < p.maxProgress {
		p.currentProgress++
	}
	p.display()
}

// SetPostfix sets text displayed after the progress bar, such as a
// running statistic
func (p *ProgressBar) SetPostfix(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.postfix = fmt.Sprintf(format, args...)
	if !p.closed {
		p.display()
	}
}

// Close closes the progress bar so that it will no longer display to
// the screen
func (p *ProgressBar) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		panic("close: close on closed progress bar")
	}
	p.closed = true
	fmt.Fprintln(p.w) // Jump to next line after printed pbar
}

// String returns the current rendering of the progress bar
func (p *ProgressBar) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.render()
}

func (p *ProgressBar) display() {
	fmt.Fprintf(p.w, "\r\033[K%v", p.render())
}

func (p *ProgressBar) render() string {
	var bar strings.Builder
	bar.WriteString("|")

	currentProg := p.currentProgress / p.maxProgress * p.width
	for i := 0.0; i < currentProg; i++ {
		bar.WriteString("█")
	}
	for i := currentProg; i < p.width; i++ {
		bar.WriteString(" ")
	}
	bar.WriteString(fmt.Sprintf("| [%.2f%v | elapsed: %v]",
		p.currentProgress/p.maxProgress*100, "%",
		time.Since(p.startTime).Truncate(time.Second)))

	if p.postfix != "" {
		bar.WriteString(" " + p.postfix)
	}
	return bar.String()
}

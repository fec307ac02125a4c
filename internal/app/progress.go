package app

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
)

// progressBar renders chunk progress on one terminal line.
type progressBar struct {
	mu    sync.Mutex
	w     io.Writer
	bar   progress.Model
	drawn bool
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{
		w:   w,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Update matches executor.ProgressFunc.
func (p *progressBar) Update(done, total int) {
	if total <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\r%s %d/%d chunks", p.bar.ViewAs(float64(done)/float64(total)), done, total)
	p.drawn = true
}

// Done ends the progress line.
func (p *progressBar) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}

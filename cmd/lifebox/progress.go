package main

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter redraws a single status line with the elapsed time until
// stopped. Start at most once; Stop is idempotent.
type ProgressPrinter struct {
	w         io.Writer
	prefix    string
	phase     atomic.Value // string
	startTime time.Time

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
	started  atomic.Bool
}

func NewProgressPrinter(w io.Writer, prefix, phase string) *ProgressPrinter {
	p := &ProgressPrinter{
		w:        w,
		prefix:   prefix,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.phase.Store(phase)
	return p
}

func (p *ProgressPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("ProgressPrinter.Start called more than once")
	}
	p.startTime = time.Now()
	p.print(0)

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(progressUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				p.print(int(time.Since(p.startTime).Seconds()))
			}
		}
	}()
}

// SetPhase changes the label shown in parentheses.
func (p *ProgressPrinter) SetPhase(phase string) {
	p.phase.Store(phase)
}

// Stop halts redrawing and clears the line.
func (p *ProgressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
		if p.started.Load() {
			<-p.done
			fmt.Fprint(p.w, clearLineSequence)
		}
	})
}

func (p *ProgressPrinter) print(seconds int) {
	phase := p.phase.Load().(string)
	if seconds > 0 {
		fmt.Fprintf(p.w, "\r%s (%s %ds)   ", p.prefix, phase, seconds)
	} else {
		fmt.Fprintf(p.w, "\r%s (%s...)   ", p.prefix, phase)
	}
}

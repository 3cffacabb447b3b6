package mailmerge

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one worker is available.
	MinPoolSize = 1

	// MaxPoolSize caps browser instances to limit memory (~200MB each).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

var errPoolClosed = errors.New("browser pool closed")

// pdfBrowser is one running browser able to print a local page to PDF.
type pdfBrowser interface {
	PrintToPDF(ctx context.Context, fileURL string, page *PageSettings) ([]byte, error)
	Close() error
}

// BrowserPool hands out up to size browser instances. Browsers are
// launched lazily on first acquire. The idle channel holds either a
// browser or a nil token standing for a free slot whose browser must be
// (re)launched.
type BrowserPool struct {
	size   int
	launch func(ctx context.Context) (pdfBrowser, error)

	mu      sync.Mutex
	idle    chan pdfBrowser
	created int
	live    []pdfBrowser
	closed  bool
}

// NewBrowserPool creates a pool of at most n headless Chrome instances.
func NewBrowserPool(n int) *BrowserPool {
	return newBrowserPool(n, launchRodBrowser)
}

func newBrowserPool(n int, launch func(ctx context.Context) (pdfBrowser, error)) *BrowserPool {
	if n < 1 {
		n = 1
	}
	return &BrowserPool{
		size:   n,
		launch: launch,
		idle:   make(chan pdfBrowser, n),
	}
}

// acquire returns a browser, launching one if a slot is free. Blocks while
// every browser is in use.
func (p *BrowserPool) acquire(ctx context.Context) (pdfBrowser, error) {
	select {
	case b, ok := <-p.idle:
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, errPoolClosed)
		}
		return p.ready(ctx, b)
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, errPoolClosed)
	}
	if p.created < p.size {
		p.created++
		p.mu.Unlock()
		return p.ready(ctx, nil)
	}
	p.mu.Unlock()

	select {
	case b, ok := <-p.idle:
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, errPoolClosed)
		}
		return p.ready(ctx, b)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ready launches a browser for a nil slot token. The launch is bounded by
// ctx: when ctx ends first the token is returned and the late browser, if
// any, is closed. On failure the token is returned to the pool.
func (p *BrowserPool) ready(ctx context.Context, b pdfBrowser) (pdfBrowser, error) {
	if b != nil {
		return b, nil
	}

	type launched struct {
		b   pdfBrowser
		err error
	}
	done := make(chan launched, 1)
	go func() {
		b, err := p.launch(ctx)
		done <- launched{b: b, err: err}
	}()

	var res launched
	select {
	case res = <-done:
	case <-ctx.Done():
		p.put(nil)
		go func() {
			if late := <-done; late.b != nil {
				_ = late.b.Close()
			}
		}()
		return nil, fmt.Errorf("launching browser: %w", ctx.Err())
	}
	if res.err != nil {
		p.put(nil)
		return nil, res.err
	}
	b = res.b

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = b.Close()
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, errPoolClosed)
	}
	p.live = append(p.live, b)
	p.mu.Unlock()
	return b, nil
}

// release returns b to the pool. An unhealthy browser is closed and its
// slot freed for a relaunch.
func (p *BrowserPool) release(b pdfBrowser, healthy bool) {
	if healthy {
		p.put(b)
		return
	}

	p.mu.Lock()
	for i, l := range p.live {
		if l == b {
			p.live = append(p.live[:i], p.live[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	_ = b.Close()
	p.put(nil)
}

// put sends under the lock so it never races with Close. The channel
// holds at most size entries, so the send never blocks.
func (p *BrowserPool) put(b pdfBrowser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.idle <- b:
	default:
	}
}

// Close releases all browser resources.
// Returns an aggregated error if multiple browsers fail to close.
func (p *BrowserPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.idle)
	for range p.idle {
		// drop buffered entries; live holds every browser
	}
	live := p.live
	p.live = nil
	p.mu.Unlock()

	var errs []error
	for _, b := range live {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *BrowserPool) Size() int {
	return p.size
}

// ResolvePoolSize determines the worker and browser count.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is container-aware once automaxprocs has run.
	n := runtime.GOMAXPROCS(0) / cpuDivisor

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}

package presenter

import "time"

const (
	defaultCloseUpZoom = 17
	defaultZoomStep    = 80 * time.Millisecond
)

// Options tunes the camera behaviour. The zero value is usable.
type Options struct {
	// CloseUpZoom is the fixed level used when a house is selected,
	// regardless of where the camera was before.
	CloseUpZoom int
	// ZoomStepEvery is the delay between single-level zoom steps. Zero or
	// negative means jump straight to the target (handy in tests).
	ZoomStepEvery time.Duration
}

func (o Options) withDefaults() Options {
	if o.CloseUpZoom == 0 {
		o.CloseUpZoom = defaultCloseUpZoom
	}
	return o
}

// smoothZoomTo walks the zoom level one step at a time toward target. A new
// call cancels any walk still in flight so two selections never fight over
// the camera.
func (p *Presenter) smoothZoomTo(target int) {
	p.mu.Lock()
	if p.zoomCancel != nil {
		close(p.zoomCancel)
		p.zoomCancel = nil
	}
	if p.opts.ZoomStepEvery <= 0 {
		p.view.SetZoom(target)
		p.mu.Unlock()
		return
	}
	cancel := make(chan struct{})
	p.zoomCancel = cancel
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(p.opts.ZoomStepEvery)
		defer ticker.Stop()
		for {
			cur := p.view.Zoom()
			if cur == target {
				return
			}
			step := 1
			if cur > target {
				step = -1
			}
			p.view.SetZoom(cur + step)
			select {
			case <-cancel:
				return
			case <-ticker.C:
			}
		}
	}()
}

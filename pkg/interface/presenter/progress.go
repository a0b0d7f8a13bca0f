package presenter

import (
	"io"
	"sync"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ProbeProgress shows a progress bar per diagnostic while TCP probes run
type ProbeProgress struct {
	progress *mpb.Progress
	bar      *mpb.Bar
	mu       sync.Mutex
}

// NewProbeProgress creates a progress container writing to w
func NewProbeProgress(w io.Writer, width int) *ProbeProgress {
	return &ProbeProgress{
		progress: mpb.New(mpb.WithOutput(w), mpb.WithWidth(width)),
	}
}

// OnProbesStarted implements application.ProbeObserver
func (p *ProbeProgress) OnProbesStarted(host string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bar = p.progress.AddBar(int64(total),
		mpb.BarOptional(mpb.BarRemoveOnComplete(), false),
		mpb.PrependDecorators(
			decor.Name(host, decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("[%d / %d]", decor.WCSyncWidth),
			decor.OnComplete(
				decor.Percentage(decor.WCSyncSpace), "done",
			),
		),
	)
}

// OnProbeFinished implements application.ProbeObserver
func (p *ProbeProgress) OnProbeFinished(result entity.ProbeResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		p.bar.Increment()
	}
}

// Wait blocks until all bars have been rendered to completion
func (p *ProbeProgress) Wait() {
	p.progress.Wait()
}

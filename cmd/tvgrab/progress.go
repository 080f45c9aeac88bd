package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/vmunix/tvgrab/internal/download"
	"github.com/vmunix/tvgrab/internal/scheduler"
)

// progressPrinter drives one progress bar per running task and prints a
// result line when the task ends.
type progressPrinter struct {
	out      io.Writer
	throttle time.Duration

	mu    sync.Mutex
	bars  map[int]*progressbar.ProgressBar
	total int
}

var (
	_ scheduler.Observer    = (*progressPrinter)(nil)
	_ scheduler.RunObserver = (*progressPrinter)(nil)
)

func newProgressPrinter(out io.Writer, throttle time.Duration) *progressPrinter {
	return &progressPrinter{
		out:      out,
		throttle: throttle,
		bars:     make(map[int]*progressbar.ProgressBar),
	}
}

func (p *progressPrinter) RunStarted(_ string, tasks []download.Task) {
	p.mu.Lock()
	p.total = len(tasks)
	p.mu.Unlock()
}

func (p *progressPrinter) RunFinished(string, scheduler.Summary) {}

func (p *progressPrinter) prefix(index int, name string) string {
	return fmt.Sprintf("[%d/%d] %s", index+1, p.total, name)
}

// TaskAdmitted starts a spinner; the size is learned from the first progress.
func (p *progressPrinter) TaskAdmitted(_ string, index int, task download.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bars[index] = progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(p.prefix(index, task.Name)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(p.throttle),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (p *progressPrinter) TaskProgressed(_ string, index int, prog download.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bar, ok := p.bars[index]
	if !ok || prog.State.IsTerminal() {
		return
	}
	if prog.TotalBytes > 0 && bar.GetMax64() != prog.TotalBytes {
		bar.ChangeMax64(prog.TotalBytes)
	}
	_ = bar.Set64(prog.BytesDownloaded)
}

func (p *progressPrinter) TaskFinished(_ string, index int, res download.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bar, ok := p.bars[index]; ok {
		_ = bar.Exit()
		_ = bar.Clear()
		delete(p.bars, index)
	}

	prefix := p.prefix(index, res.Task.Name)
	switch {
	case res.Outcome == download.OutcomeAlreadyComplete:
		fmt.Fprintf(p.out, "%s  already complete (%s)\n", prefix, humanize.Bytes(uint64(max(res.Bytes, 0))))
	case res.OK():
		fmt.Fprintf(p.out, "%s  done (%s)\n", prefix, humanize.Bytes(uint64(max(res.Bytes, 0))))
	default:
		fmt.Fprintf(p.out, "%s  FAILED: %s\n", prefix, res.Reason())
	}
}

package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vmunix/tvgrab/internal/fsutil"
)

// DefaultChunkSize is the read size used when Options.ChunkSize is unset.
const DefaultChunkSize = 16 * 1024

// Options tunes the engine. RequireResumeSupport and FailOnSizeMismatch are
// policy switches for servers that misbehave.
type Options struct {
	ChunkSize   int
	Retry       RetryPolicy
	ReadTimeout time.Duration // max wait for the next chunk; 0 disables
	UserAgent   string

	// RequireResumeSupport refuses servers without Content-Length and
	// Accept-Ranges: bytes. When false such files restart from zero.
	RequireResumeSupport bool
	// FailOnSizeMismatch fails a transfer whose byte count differs from
	// Content-Length instead of logging a warning.
	FailOnSizeMismatch bool
}

// DefaultOptions returns the conservative engine policy.
func DefaultOptions() Options {
	return Options{
		ChunkSize:            DefaultChunkSize,
		Retry:                RetryPolicy{MaxAttempts: 5, Delay: 5 * time.Second},
		ReadTimeout:          time.Minute,
		RequireResumeSupport: true,
	}
}

// Engine performs resumable downloads into a directory.
type Engine struct {
	client *http.Client
	opts   Options
	log    *slog.Logger
}

// NewEngine creates a download engine. The client must not set an overall
// Timeout; stalls are bounded by Options.ReadTimeout instead.
func NewEngine(client *http.Client, opts Options, log *slog.Logger) *Engine {
	if client == nil {
		client = &http.Client{Transport: NewTransport(30*time.Second, 0)}
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{client: client, opts: opts, log: log}
}

// NewTransport returns an HTTP transport whose dial and header waits are
// bounded by timeout. maxConns limits connections per host; 0 means no limit.
func NewTransport(timeout time.Duration, maxConns int) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	t.TLSHandshakeTimeout = timeout
	t.ResponseHeaderTimeout = timeout
	t.MaxConnsPerHost = maxConns
	return t
}

// Download fetches task into dir, resuming from any partial file already
// there. It never panics or returns an error: every failure is reported in
// the Result.
func (e *Engine) Download(ctx context.Context, task Task, dir string, onProgress ProgressFunc) Result {
	res := Result{Task: task, Outcome: OutcomeFailed}
	tr := &tracker{p: Progress{Name: task.Name, State: StatePending}, emit: onProgress}
	log := e.log.With("task", task.Name)

	path, err := e.destination(task, dir)
	if err != nil {
		res.Err = err
		tr.finish(StateFailed)
		log.Error("download failed", "reason", res.Reason(), "error", err)
		return res
	}
	res.Path = path
	tr.report()

	start := time.Now()
	var outcome Outcome
	attempts, err := e.opts.Retry.Do(ctx, func(attempt int) error {
		var err error
		outcome, err = e.attempt(ctx, task, path, tr, attempt)
		return err
	}, func(attempt int, err error) {
		log.Warn("transient failure, retrying",
			"attempt", attempt,
			"offset", tr.p.BytesDownloaded,
			"delay", e.opts.Retry.Delay,
			"error", err)
	})

	res.Attempts = attempts
	res.Bytes, res.Total = tr.p.BytesDownloaded, tr.p.TotalBytes
	if size, statErr := fsutil.FileSize(path); statErr == nil {
		res.Bytes = size
	}

	if err != nil {
		res.Err = err
		tr.finish(StateFailed)
		log.Error("download failed", "reason", res.Reason(), "attempts", attempts, "error", err)
		return res
	}

	res.Outcome = outcome
	if res.Total > 0 && res.Bytes != res.Total {
		res.Err = fmt.Errorf("%w: got %d of %d bytes", ErrSizeMismatch, res.Bytes, res.Total)
	}
	tr.finish(StateCompleted)
	log.Info("download finished",
		"outcome", outcome,
		"bytes", res.Bytes,
		"attempts", attempts,
		"duration_ms", time.Since(start).Milliseconds())
	return res
}

func (e *Engine) destination(task Task, dir string) (string, error) {
	name := fsutil.SanitizeFilename(task.Name)
	if name == "" {
		return "", unexpected("task %q has no usable file name", task.Name)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", unexpected("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := fsutil.ValidatePath(path, dir); err != nil {
		return "", unexpected("%s: %w", path, err)
	}
	return path, nil
}

// attempt runs one pass of the resume protocol: probe, range request, stream.
func (e *Engine) attempt(ctx context.Context, task Task, path string, tr *tracker, attempt int) (Outcome, error) {
	existing, err := fsutil.FileSize(path)
	if err != nil {
		return "", unexpected("stat %s: %w", path, err)
	}

	total, resumable, err := e.probe(ctx, task.URL)
	if err != nil {
		return "", err
	}
	if !resumable {
		if e.opts.RequireResumeSupport {
			return "", fmt.Errorf("%w: %s", ErrServerNotResumable, task.URL)
		}
		existing = 0
	}

	if resumable && existing >= total {
		if existing == 0 {
			if err := touch(path); err != nil {
				return "", err
			}
		}
		// The terminal record is left to Download.
		tr.set(existing, total)
		e.log.Info("file already complete", "task", task.Name, "bytes", existing, "total", total)
		return OutcomeAlreadyComplete, nil
	}

	rangeHeader := ""
	if resumable {
		rangeHeader = fmt.Sprintf("bytes=%d-%d", existing, total-1)
	}
	resp, err := e.get(ctx, task.URL, rangeHeader)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	flags := os.O_CREATE | os.O_WRONLY
	switch resp.StatusCode {
	case http.StatusPartialContent:
		start, ok := contentRangeStart(resp.Header.Get("Content-Range"))
		if !ok || start != existing {
			return "", fmt.Errorf("%w: content-range %q does not start at %d",
				ErrUnexpectedStatus, resp.Header.Get("Content-Range"), existing)
		}
		flags |= os.O_APPEND
	case http.StatusOK:
		if existing > 0 {
			e.log.Warn("server ignored range request, restarting", "task", task.Name, "offset", existing)
		}
		existing = 0
		flags |= os.O_TRUNC
	default:
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if !resumable {
		total = resp.ContentLength
		if total < 0 {
			total = 0
		}
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return "", unexpected("open %s: %w", path, err)
	}

	state := StateDownloading
	if existing > 0 || attempt > 1 {
		state = StateResuming
	}
	tr.update(existing, total, state)

	copyErr := e.copy(ctx, f, resp.Body, tr)
	if err := f.Close(); err != nil && copyErr == nil {
		copyErr = unexpected("close %s: %w", path, err)
	}
	if copyErr != nil {
		return "", copyErr
	}

	if total > 0 && tr.p.BytesDownloaded != total {
		e.log.Warn("size mismatch",
			"kind", "SizeMismatch",
			"task", task.Name,
			"bytes", tr.p.BytesDownloaded,
			"content_length", total)
		if e.opts.FailOnSizeMismatch {
			return "", fmt.Errorf("%w: got %d of %d bytes", ErrSizeMismatch, tr.p.BytesDownloaded, total)
		}
	}
	return OutcomeCompleted, nil
}

// probe learns the full size and resume support without reading the body.
func (e *Engine) probe(ctx context.Context, rawURL string) (int64, bool, error) {
	resp, err := e.get(ctx, rawURL, "")
	if err != nil {
		return 0, false, err
	}
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, false, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	total := resp.ContentLength
	if resp.StatusCode == http.StatusPartialContent {
		total = contentRangeTotal(resp.Header.Get("Content-Range"))
	}
	acceptsRanges := strings.EqualFold(strings.TrimSpace(resp.Header.Get("Accept-Ranges")), "bytes")
	return total, total >= 0 && acceptsRanges, nil
}

func (e *Engine) get(ctx context.Context, rawURL, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, unexpected("create request: %w", err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	if e.opts.UserAgent != "" {
		req.Header.Set("User-Agent", e.opts.UserAgent)
	}
	// Compressed bodies would make byte offsets meaningless.
	req.Header.Set("Accept-Encoding", "identity")
	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || IsTransient(err) {
			return nil, err
		}
		return nil, unexpected("get %s: %w", rawURL, err)
	}
	return resp, nil
}

// copy streams body into f chunk by chunk, reporting progress after each
// chunk and checking for cancellation at chunk boundaries.
func (e *Engine) copy(ctx context.Context, f *os.File, body io.Reader, tr *tracker) error {
	buf := make([]byte, e.opts.ChunkSize)

	var stall *time.Timer
	stalled := make(chan struct{})
	if e.opts.ReadTimeout > 0 {
		// Closing the body unblocks a Read stuck on a silent connection.
		closer, _ := body.(io.Closer)
		var once sync.Once
		stall = time.AfterFunc(e.opts.ReadTimeout, func() {
			once.Do(func() {
				close(stalled)
				if closer != nil {
					_ = closer.Close()
				}
			})
		})
		defer stall.Stop()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return unexpected("write %s: %w", f.Name(), err)
			}
			tr.update(tr.p.BytesDownloaded+int64(n), tr.p.TotalBytes, tr.p.State)
			if stall != nil {
				stall.Reset(e.opts.ReadTimeout)
			}
		}

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			select {
			case <-stalled:
				return fmt.Errorf("%w: no data for %s", ErrStalled, e.opts.ReadTimeout)
			default:
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return readErr
		}
	}
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return unexpected("create %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return unexpected("close %s: %w", path, err)
	}
	return nil
}

// contentRangeStart parses the first byte position of "bytes 100-199/200".
func contentRangeStart(h string) (int64, bool) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(h), "bytes ")
	if !ok {
		return 0, false
	}
	first, _, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	return n, err == nil
}

// contentRangeTotal parses the complete length of "bytes 0-0/200", or -1.
func contentRangeTotal(h string) int64 {
	_, total, ok := strings.Cut(h, "/")
	if !ok {
		return -1
	}
	n, err := strconv.ParseInt(strings.TrimSpace(total), 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// tracker owns a task's progress record. Only the engine goroutine running
// the task writes to it.
type tracker struct {
	p    Progress
	emit ProgressFunc
}

func (t *tracker) update(downloaded, total int64, state State) {
	t.set(downloaded, total)
	t.p.State = state
	t.report()
}

// set records byte counters without emitting.
func (t *tracker) set(downloaded, total int64) {
	t.p.BytesDownloaded = downloaded
	t.p.TotalBytes = total
	t.p.Percent = percent(downloaded, total)
}

func (t *tracker) finish(state State) {
	if state == StateCompleted && t.p.TotalBytes > 0 && t.p.BytesDownloaded >= t.p.TotalBytes {
		t.p.Percent = 100
	}
	t.p.State = state
	t.report()
}

func (t *tracker) report() {
	if t.emit != nil {
		t.emit(t.p)
	}
}

package download

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// testLogger returns a discard logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testContent(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}

// fileServer serves one file with configurable range support.
type fileServer struct {
	content      []byte
	acceptRanges bool
	omitLength   bool
	ignoreRange  bool

	mu     sync.Mutex
	ranges []string
}

func (s *fileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rng := r.Header.Get("Range")
	s.mu.Lock()
	s.ranges = append(s.ranges, rng)
	s.mu.Unlock()

	if s.acceptRanges {
		w.Header().Set("Accept-Ranges", "bytes")
	}

	body, status := s.content, http.StatusOK
	if rng != "" && !s.ignoreRange {
		start, end, ok := parseRange(rng, len(s.content))
		if !ok {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		body = s.content[start : end+1]
		status = http.StatusPartialContent
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(s.content)))
	}

	if s.omitLength {
		w.WriteHeader(status)
		w.(http.Flusher).Flush()
	} else {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(status)
	}
	_, _ = w.Write(body)
}

func (s *fileServer) seenRanges() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ranges...)
}

func parseRange(h string, size int) (int, int, bool) {
	spec, ok := strings.CutPrefix(h, "bytes=")
	if !ok {
		return 0, 0, false
	}
	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, false
	}
	start, err := strconv.Atoi(first)
	if err != nil || start >= size {
		return 0, 0, false
	}
	end := size - 1
	if last != "" {
		if end, err = strconv.Atoi(last); err != nil || end >= size {
			return 0, 0, false
		}
	}
	return start, end, true
}

// flakyTransport is an in-memory server whose ranged bodies fail part-way
// for the first `failures` requests.
type flakyTransport struct {
	content   []byte
	failAfter int
	failures  int
	failErr   error

	mu     sync.Mutex
	ranges []string
}

func (t *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rng := req.Header.Get("Range")

	t.mu.Lock()
	t.ranges = append(t.ranges, rng)
	fail := rng != "" && t.failures != 0
	if fail && t.failures > 0 {
		t.failures--
	}
	t.mu.Unlock()

	header := http.Header{}
	header.Set("Accept-Ranges", "bytes")
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Request:    req,
	}

	body := t.content
	if rng != "" {
		start, end, ok := parseRange(rng, len(t.content))
		if !ok {
			resp.StatusCode = http.StatusRequestedRangeNotSatisfiable
			resp.Body = io.NopCloser(bytes.NewReader(nil))
			return resp, nil
		}
		body = t.content[start : end+1]
		resp.StatusCode = http.StatusPartialContent
		header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(t.content)))
	}
	resp.ContentLength = int64(len(body))

	if fail {
		n := t.failAfter
		if n > len(body) {
			n = len(body)
		}
		resp.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body[:n]), errReader{t.failErr}))
	} else {
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	return resp, nil
}

func (t *flakyTransport) seenRanges() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.ranges...)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// stallTransport answers the probe normally and then never delivers a body.
type stallTransport struct {
	size int64
}

func (t *stallTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	header := http.Header{}
	header.Set("Accept-Ranges", "bytes")
	resp := &http.Response{StatusCode: http.StatusOK, Header: header, Request: req, ContentLength: t.size}
	if req.Header.Get("Range") == "" {
		resp.Body = io.NopCloser(bytes.NewReader(nil))
		return resp, nil
	}
	resp.StatusCode = http.StatusPartialContent
	header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", t.size-1, t.size))
	resp.Body = &blockingBody{done: make(chan struct{})}
	return resp, nil
}

type blockingBody struct {
	once sync.Once
	done chan struct{}
}

func (b *blockingBody) Read([]byte) (int, error) {
	<-b.done
	return 0, io.ErrClosedPipe
}

func (b *blockingBody) Close() error {
	b.once.Do(func() { close(b.done) })
	return nil
}

// progressLog collects progress snapshots.
type progressLog struct {
	mu    sync.Mutex
	items []Progress
}

func (l *progressLog) record(p Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, p)
}

func (l *progressLog) all() []Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Progress(nil), l.items...)
}

func (l *progressLog) last(t *testing.T) Progress {
	t.Helper()
	items := l.all()
	if len(items) == 0 {
		t.Fatal("no progress reported")
	}
	return items[len(items)-1]
}

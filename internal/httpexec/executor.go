// Package httpexec implements the snatchlib Executor contract over
// plain HTTP(S). It streams the response body through a throttle reader
// honouring the scheduler's bandwidth grant, reports progress on a fixed
// interval, and polls the cancellation token at chunk boundaries.
package httpexec

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/snatchdl/snatch/pkg/logger"
	"github.com/snatchdl/snatch/pkg/snatchlib"
)

// Option keys understood in a task's opaque options payload.
const (
	// OptFilename overrides the output file name derived from the URL.
	OptFilename = "filename"
	// OptHeaderPrefix marks request header options, e.g.
	// "header:Authorization".
	OptHeaderPrefix = "header:"
)

// Default executor configuration values.
const (
	DefChunkSize        = 32 * 1024
	DefProgressInterval = 500 * time.Millisecond
	DefRequestTimeout   = 30 * time.Second
)

// Config configures an Executor. Zero fields take defaults in New.
type Config struct {
	// Client performs the HTTP requests. The default client applies
	// DefRequestTimeout to the initial response.
	Client *http.Client
	// Fs receives downloaded files. Defaults to the OS filesystem.
	Fs afero.Fs
	// Dir is the output directory. Defaults to the working directory.
	Dir string
	// ChunkSize is the copy buffer size; the cancellation token is
	// checked between chunks.
	ChunkSize int
	// ProgressInterval throttles progress callbacks.
	ProgressInterval time.Duration
	// Logger receives transfer diagnostics. Defaults to NopLogger.
	Logger logger.Logger
}

// Executor downloads tasks over HTTP.
type Executor struct {
	client   *http.Client
	fs       afero.Fs
	dir      string
	chunk    int
	interval time.Duration
	log      logger.Logger
}

// New creates an Executor. A nil cfg uses all defaults.
func New(cfg *Config) *Executor {
	if cfg == nil {
		cfg = &Config{}
	}
	e := &Executor{
		client:   cfg.Client,
		fs:       cfg.Fs,
		dir:      cfg.Dir,
		chunk:    cfg.ChunkSize,
		interval: cfg.ProgressInterval,
		log:      cfg.Logger,
	}
	if e.client == nil {
		e.client = &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: DefRequestTimeout,
			},
		}
	}
	if e.fs == nil {
		e.fs = afero.NewOsFs()
	}
	if e.dir == "" {
		e.dir = "."
	}
	if e.chunk <= 0 {
		e.chunk = DefChunkSize
	}
	if e.interval <= 0 {
		e.interval = DefProgressInterval
	}
	if e.log == nil {
		e.log = logger.NewNopLogger()
	}
	return e
}

var _ snatchlib.Executor = (*Executor)(nil)

// Execute performs the transfer for one dispatched task. Read timeouts
// surface as ordinary failures, which the scheduler feeds to its retry
// controller; a set cancellation token ends the transfer with
// snatchlib.ErrCancelled.
func (e *Executor) Execute(task snatchlib.TaskSnapshot, rate int64, progress snatchlib.ProgressFunc, token *snatchlib.CancelToken) snatchlib.Outcome {
	if token.Cancelled() {
		return snatchlib.Outcome{Err: snatchlib.ErrCancelled}
	}

	req, err := http.NewRequest(http.MethodGet, task.Url, nil)
	if err != nil {
		return snatchlib.Outcome{Err: fmt.Errorf("build request: %w", err)}
	}
	for k, v := range task.Options {
		if name, ok := strings.CutPrefix(k, OptHeaderPrefix); ok {
			req.Header.Set(name, v)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return snatchlib.Outcome{Err: fmt.Errorf("request %s: %w", task.Url, err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return snatchlib.Outcome{Err: fmt.Errorf("unexpected status %s for %s", resp.Status, task.Url)}
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	name := outputName(task)
	dst := filepath.Join(e.dir, name)
	f, err := e.fs.Create(dst)
	if err != nil {
		return snatchlib.Outcome{Err: fmt.Errorf("create %s: %w", dst, err)}
	}

	e.log.Info("transfer %s -> %s (rate=%d B/s)", task.Url, dst, rate)
	written, err := e.copyBody(f, resp.Body, rate, total, progress, token)
	if err != nil {
		if cerr := f.Close(); cerr != nil {
			err = multierror.Append(err, cerr)
		}
		return snatchlib.Outcome{BytesTransferred: written, Err: err}
	}
	if err := f.Close(); err != nil {
		return snatchlib.Outcome{BytesTransferred: written, Err: fmt.Errorf("close %s: %w", dst, err)}
	}
	progress(written, total)
	return snatchlib.Outcome{BytesTransferred: written}
}

// copyBody streams body into w chunk by chunk, checking the token
// between chunks and reporting progress on the configured interval.
func (e *Executor) copyBody(w io.Writer, body io.Reader, rate, total int64, progress snatchlib.ProgressFunc, token *snatchlib.CancelToken) (int64, error) {
	src := snatchlib.NewThrottleReader(body, rate)
	buf := make([]byte, e.chunk)
	var written int64
	lastReport := time.Now()

	for {
		if token.Cancelled() {
			return written, snatchlib.ErrCancelled
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return written, fmt.Errorf("write output: %w", werr)
			}
			written += int64(n)
			if time.Since(lastReport) >= e.interval {
				progress(written, total)
				lastReport = time.Now()
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, fmt.Errorf("read body: %w", rerr)
		}
	}
}

// outputName picks the output file name: the filename option when set,
// otherwise the last URL path element, otherwise the task id.
func outputName(task snatchlib.TaskSnapshot) string {
	if name := task.Options[OptFilename]; name != "" {
		return name
	}
	if u, err := url.Parse(task.Url); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return task.Id
}

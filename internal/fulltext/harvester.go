package fulltext

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	ierrors "github.com/Aman-CERP/marcindex/internal/errors"
	"github.com/Aman-CERP/marcindex/internal/marc"
)

const (
	// DefaultFieldSpec holds electronic location URLs.
	DefaultFieldSpec = "856u"
	// DefaultTimeout bounds a single tool invocation.
	DefaultTimeout = 2 * time.Minute
	// DefaultWorkers bounds concurrent tool invocations per record.
	DefaultWorkers = 2
)

// Config configures a Harvester.
type Config struct {
	Settings

	FieldSpec string
	Extension string
	Timeout   time.Duration
	Workers   int

	// MaxFailures consecutive tool failures open the circuit; ResetTimeout
	// later a single probe is let through.
	MaxFailures  int
	ResetTimeout time.Duration

	// TempDir holds Aperture output files. Empty uses os.TempDir.
	TempDir string
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithRunner replaces the process runner.
func WithRunner(r CommandRunner) Option {
	return func(h *Harvester) { h.runner = r }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Harvester) { h.logger = l }
}

// Harvester extracts full text for the documents a record links to.
// It is safe for concurrent use.
type Harvester struct {
	cfg     Config
	backend Backend
	path    string
	runner  CommandRunner
	breaker *ierrors.CircuitBreaker
	logger  *slog.Logger
}

// New creates a harvester. A config that resolves to BackendNone yields a
// disabled harvester, not an error.
func New(cfg Config, opts ...Option) *Harvester {
	if cfg.FieldSpec == "" {
		cfg.FieldSpec = DefaultFieldSpec
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	h := &Harvester{
		cfg:    cfg,
		runner: ExecRunner{},
		logger: slog.Default(),
	}
	h.backend, h.path = cfg.Resolve()

	breakerOpts := []ierrors.CircuitBreakerOption{ierrors.WithMaxFailures(cfg.MaxFailures)}
	if cfg.ResetTimeout > 0 {
		breakerOpts = append(breakerOpts, ierrors.WithResetTimeout(cfg.ResetTimeout))
	}
	h.breaker = ierrors.NewCircuitBreaker("fulltext-"+string(h.backend), breakerOpts...)

	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Backend returns the resolved backend.
func (h *Harvester) Backend() Backend {
	return h.backend
}

// Enabled reports whether a backend is configured.
func (h *Harvester) Enabled() bool {
	return h.backend != BackendNone
}

// Harvest returns the text of every linked document whose URL matches the
// extension filter, in field order. ok is false when no backend is
// configured. Tool failures are logged and contribute no text.
func (h *Harvester) Harvest(ctx context.Context, rec *marc.Record) (text string, ok bool) {
	if !h.Enabled() {
		return "", false
	}

	urls := h.URLs(rec)
	if len(urls) == 0 {
		return "", true
	}

	results := make([]string, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.Workers)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			t, err := h.HarvestURL(gctx, u)
			if err != nil {
				h.logger.Warn("fulltext_harvest_failed",
					slog.String("url", u),
					slog.String("backend", string(h.backend)),
					slog.String("error", err.Error()))
				return nil
			}
			results[i] = t
			return nil
		})
	}
	_ = g.Wait()

	parts := results[:0]
	for _, r := range results {
		if r = strings.TrimSpace(r); r != "" {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, " "), true
}

// URLs lists the document URLs selected from rec, with spaces encoded and
// the extension filter applied.
func (h *Harvester) URLs(rec *marc.Record) []string {
	var urls []string
	for _, v := range rec.FieldList(h.cfg.FieldSpec).Values() {
		u := strings.ReplaceAll(v, " ", "%20")
		if h.cfg.Extension != "" && !strings.HasSuffix(u, h.cfg.Extension) {
			continue
		}
		urls = append(urls, u)
	}
	return urls
}

// HarvestURL runs the configured backend for one URL under the timeout and
// circuit breaker.
func (h *Harvester) HarvestURL(ctx context.Context, url string) (string, error) {
	switch h.backend {
	case BackendAperture, BackendTika:
	default:
		return "", nil
	}

	text, err := ierrors.CircuitExecute(h.breaker, func() (string, error) {
		tctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()

		start := time.Now()
		var text string
		var err error
		if h.backend == BackendAperture {
			text, err = h.aperture(tctx, url)
		} else {
			text, err = h.tika(tctx, url)
		}
		if err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return "", ierrors.New(ierrors.ErrCodeToolTimeout, "extraction timed out", err).
				WithDetail("url", url).
				WithDetail("timeout", h.cfg.Timeout.String())
		}
		if err != nil {
			return "", ierrors.ToolError(fmt.Sprintf("%s failed", h.backend), err).WithDetail("url", url)
		}
		h.logger.Debug("fulltext_harvested",
			slog.String("url", url),
			slog.Int("chars", len(text)),
			slog.Duration("duration", time.Since(start)))
		return text, nil
	})
	return text, err
}

// tika runs `java -jar <path> -t -eUTF8 <url>`; stdout is the text.
func (h *Harvester) tika(ctx context.Context, url string) (string, error) {
	out, err := h.runner.Run(ctx, "java", "-jar", h.path, "-t", "-eUTF8", url)
	if err != nil {
		return "", err
	}
	lines := strings.Split(strings.ReplaceAll(string(out), "\r\n", "\n"), "\n")
	return Sanitize(strings.TrimSpace(strings.Join(lines, " "))), nil
}

// aperture runs `<path> -o <tmp> -x <url>` and reads the first
// plainTextContent element of the XML it writes.
func (h *Harvester) aperture(ctx context.Context, url string) (string, error) {
	f, err := os.CreateTemp(h.cfg.TempDir, "apt*.xml")
	if err != nil {
		return "", ierrors.InternalError("create temp file for aperture output", err)
	}
	tmp := f.Name()
	_ = f.Close()
	defer os.Remove(tmp)

	if _, err := h.runner.Run(ctx, h.path, "-o", tmp, "-x", url); err != nil {
		return "", err
	}

	data, err := os.ReadFile(tmp)
	if err != nil {
		return "", fmt.Errorf("read aperture output: %w", err)
	}
	return firstElementText(strings.NewReader(Sanitize(string(data))), "plainTextContent")
}

// firstElementText returns the concatenated character data inside the first
// element with the given local name, or "" if there is none.
func firstElementText(r io.Reader, name string) (string, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false

	depth := 0
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("parse aperture output: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth > 0 || t.Name.Local == name {
				depth++
			}
		case xml.EndElement:
			if depth > 0 {
				depth--
				if depth == 0 {
					return b.String(), nil
				}
			}
		case xml.CharData:
			if depth > 0 {
				b.Write(t)
			}
		}
	}
}

package preview

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PaulBabatuyi/projectfiles/internal/models"
	"github.com/PaulBabatuyi/projectfiles/internal/observability"
	"github.com/PaulBabatuyi/projectfiles/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeout        = 60 * time.Second
	DefaultThumbnailWidth = 800
)

var tracer = otel.Tracer("github.com/PaulBabatuyi/projectfiles/internal/preview")

var officeExtensions = map[string]bool{
	"doc": true, "docx": true,
	"xls": true, "xlsx": true,
	"ppt": true, "pptx": true,
}

// IsRenderable reports whether f can get a PDF preview.
func IsRenderable(f *models.StoredFile) bool {
	return officeExtensions[f.Ext()]
}

// Renderer produces cached previews under its own root. Requests for the
// same artifact share one in-flight render; different artifacts proceed in
// parallel.
type Renderer struct {
	root       string
	converter  Converter
	timeout    time.Duration
	thumbWidth int
	group      singleflight.Group
	metrics    *observability.Metrics

	mu sync.Mutex
	// callers currently waiting per target
	waiting map[string]int
	logger     *zap.Logger
}

type Option func(*Renderer)

func WithTimeout(d time.Duration) Option {
	return func(r *Renderer) { r.timeout = d }
}

func WithThumbnailWidth(w int) Option {
	return func(r *Renderer) { r.thumbWidth = w }
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Renderer) { r.logger = logger }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(r *Renderer) { r.metrics = m }
}

func NewRenderer(root string, converter Converter, opts ...Option) *Renderer {
	r := &Renderer{
		root:       root,
		converter:  converter,
		timeout:    DefaultTimeout,
		thumbWidth: DefaultThumbnailWidth,
		logger:     zap.NewNop(),
		waiting:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = observability.NewMetrics(nil)
	}
	return r
}

// artifactBase is the sanitized original base name shared by all
// artifacts of a file.
func artifactBase(f *models.StoredFile) string {
	name := f.OriginalName
	if name == "" {
		name = f.StoredName
	}
	stem, _ := storage.SplitExt(storage.BaseName(name))
	if stem = storage.Sanitize(stem); stem == "" {
		return "file"
	}
	return stem
}

func (r *Renderer) artifactPath(project models.Project, f *models.StoredFile, suffix string) string {
	return filepath.Join(r.root, storage.ProjectDirName(project), artifactBase(f)+suffix)
}

// TargetPath is where the PDF preview of f is cached.
func (r *Renderer) TargetPath(project models.Project, f *models.StoredFile) string {
	return r.artifactPath(project, f, "_preview.pdf")
}

// GetOrRender returns a PDF preview of f that is at least as new as
// sourcePath, converting it if needed. A caller whose ctx ends stops
// waiting; the shared conversion keeps running until its own timeout.
func (r *Renderer) GetOrRender(ctx context.Context, project models.Project, f *models.StoredFile, sourcePath string) (string, error) {
	if !IsRenderable(f) {
		return "", fmt.Errorf("%w: .%s", models.ErrNotRenderable, f.Ext())
	}
	target := r.TargetPath(project, f)
	return r.shared(ctx, "pdf", target, func(ctx context.Context) (string, error) {
		return r.renderPDF(ctx, f, sourcePath, target)
	})
}

func (r *Renderer) shared(ctx context.Context, kind, target string, render func(context.Context) (string, error)) (_ string, err error) {
	ctx, span := tracer.Start(ctx, "Renderer."+kind, trace.WithAttributes(attribute.String("preview.target", target)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	detached := context.WithoutCancel(ctx)
	r.mu.Lock()
	if r.waiting[target] > 0 {
		r.metrics.RenderJoins.Inc()
	}
	r.waiting[target]++
	ch := r.group.DoChan(target, func() (any, error) {
		return render(detached)
	})
	r.mu.Unlock()
	defer r.leave(target)

	select {
	case res := <-ch:
		if res.Err != nil {
			r.logger.Warn("preview unavailable",
				zap.String("kind", kind),
				zap.String("target", target),
				zap.Error(res.Err),
			)
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *Renderer) leave(target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waiting[target]--; r.waiting[target] <= 0 {
		delete(r.waiting, target)
	}
}

// fresh reports whether target exists and is not older than src.
func fresh(target, src string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("%w: preview source %s", models.ErrNotFound, filepath.Base(src))
		}
		return false, err
	}
	targetInfo, err := os.Stat(target)
	if err != nil {
		return false, nil
	}
	return !targetInfo.ModTime().Before(srcInfo.ModTime()), nil
}

func (r *Renderer) renderPDF(ctx context.Context, f *models.StoredFile, src, target string) (string, error) {
	ok, err := fresh(target, src)
	if err != nil {
		return "", err
	}
	if ok {
		r.metrics.PreviewRequests.WithLabelValues("pdf", "hit").Inc()
		return target, nil
	}
	r.metrics.PreviewRequests.WithLabelValues("pdf", "miss").Inc()

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create preview dir: %v", models.ErrConverterFailure, err)
	}
	staging, err := os.MkdirTemp(dir, ".convert-*")
	if err != nil {
		return "", fmt.Errorf("%w: create staging dir: %v", models.ErrConverterFailure, err)
	}
	defer os.RemoveAll(staging)

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err = r.converter.Convert(runCtx, src, staging)
	r.metrics.ConverterDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		result := "error"
		if errors.Is(err, ErrTimeout) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			result = "timeout"
		}
		r.metrics.ConverterRuns.WithLabelValues(result).Inc()
		return "", fmt.Errorf("%w: %v", models.ErrConverterFailure, err)
	}

	out, found := locateOutput(staging, outputNames{
		target:   filepath.Base(target),
		source:   stemOf(src),
		original: artifactBase(f),
	})
	if !found {
		r.metrics.ConverterRuns.WithLabelValues("no_output").Inc()
		return "", fmt.Errorf("%w: converter produced no pdf for %s", models.ErrConverterFailure, filepath.Base(src))
	}
	if err := os.Rename(out, target); err != nil {
		r.metrics.ConverterRuns.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: publish preview: %v", models.ErrConverterFailure, err)
	}

	r.metrics.ConverterRuns.WithLabelValues("ok").Inc()
	r.logger.Info("preview rendered",
		zap.String("source", src),
		zap.String("target", target),
		zap.Duration("took", time.Since(start)),
	)
	return target, nil
}

func stemOf(path string) string {
	stem, _ := storage.SplitExt(filepath.Base(path))
	return stem
}

type outputNames struct {
	target   string
	source   string
	original string
}

// outputLocator looks for the converter's output inside the staging dir.
type outputLocator func(staging string, names outputNames) (string, bool)

// outputLocators are tried in order; converters differ in how they name
// their output.
var outputLocators = []outputLocator{
	func(staging string, n outputNames) (string, bool) {
		return existing(filepath.Join(staging, n.target))
	},
	func(staging string, n outputNames) (string, bool) {
		return existing(filepath.Join(staging, n.source+".pdf"))
	},
	func(staging string, n outputNames) (string, bool) {
		return existing(filepath.Join(staging, n.original+".pdf"))
	},
	newestPDF,
}

func locateOutput(staging string, names outputNames) (string, bool) {
	for _, locate := range outputLocators {
		if p, ok := locate(staging, names); ok {
			return p, true
		}
	}
	return "", false
}

func existing(p string) (string, bool) {
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return p, true
}

func newestPDF(staging string, _ outputNames) (string, bool) {
	entries, err := os.ReadDir(staging)
	if err != nil {
		return "", false
	}
	var (
		newest  string
		newestT time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestT) {
			newest, newestT = filepath.Join(staging, e.Name()), info.ModTime()
		}
	}
	return newest, newest != ""
}

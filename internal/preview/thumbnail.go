package preview

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/PaulBabatuyi/projectfiles/internal/models"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

var imageExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "bmp": true,
}

// IsThumbnailable reports whether f is a raster image.
func IsThumbnailable(f *models.StoredFile) bool {
	return imageExtensions[f.Ext()]
}

// ThumbnailPath is where the JPEG preview of f is cached.
func (r *Renderer) ThumbnailPath(project models.Project, f *models.StoredFile) string {
	return r.artifactPath(project, f, "_thumb.jpg")
}

// Thumbnail returns a JPEG no wider than the configured width, following
// the same cache and sharing rules as GetOrRender.
func (r *Renderer) Thumbnail(ctx context.Context, project models.Project, f *models.StoredFile, sourcePath string) (string, error) {
	if !IsThumbnailable(f) {
		return "", fmt.Errorf("%w: .%s is not an image", models.ErrNotRenderable, f.Ext())
	}
	target := r.ThumbnailPath(project, f)
	return r.shared(ctx, "thumbnail", target, func(context.Context) (string, error) {
		return r.renderThumbnail(sourcePath, target)
	})
}

func (r *Renderer) renderThumbnail(src, target string) (string, error) {
	ok, err := fresh(target, src)
	if err != nil {
		return "", err
	}
	if ok {
		r.metrics.PreviewRequests.WithLabelValues("thumbnail", "hit").Inc()
		return target, nil
	}
	r.metrics.PreviewRequests.WithLabelValues("thumbnail", "miss").Inc()

	start := time.Now()
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: decode image: %v", models.ErrConverterFailure, err)
	}

	bounds := img.Bounds()
	origWidth, origHeight := bounds.Dx(), bounds.Dy()
	if origWidth > r.thumbWidth {
		img = imaging.Resize(img, r.thumbWidth, 0, imaging.Lanczos)
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create preview dir: %v", models.ErrConverterFailure, err)
	}
	tmp, err := os.CreateTemp(dir, ".thumb-*.jpg")
	if err != nil {
		return "", fmt.Errorf("%w: create temp thumbnail: %v", models.ErrConverterFailure, err)
	}
	defer os.Remove(tmp.Name())

	if err := imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: encode thumbnail: %v", models.ErrConverterFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: write thumbnail: %v", models.ErrConverterFailure, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("%w: publish thumbnail: %v", models.ErrConverterFailure, err)
	}

	r.logger.Info("thumbnail generated",
		zap.String("source", src),
		zap.Int("width", origWidth),
		zap.Int("height", origHeight),
		zap.Duration("took", time.Since(start)),
	)
	return target, nil
}

package preview_test

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/PaulBabatuyi/projectfiles/internal/models"
	"github.com/PaulBabatuyi/projectfiles/internal/preview"
	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	require.NoError(t, imaging.Save(img, path))
	return path
}

func TestThumbnailScalesDownWideImages(t *testing.T) {
	fx := newFixture(t, preview.WithThumbnailWidth(200))
	src := writeImage(t, fx.srcDir, "site_photo.png", 1000, 500)
	f := &models.StoredFile{OriginalName: "site photo.png", StoredName: "site_photo.png"}

	target, err := fx.renderer.Thumbnail(context.Background(), project, f, src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fx.root, "PX_9", "site_photo_thumb.jpg"), target)

	img, err := imaging.Open(target)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())

	again, err := fx.renderer.Thumbnail(context.Background(), project, f, src)
	require.NoError(t, err)
	assert.Equal(t, target, again)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.PreviewRequests.WithLabelValues("thumbnail", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.PreviewRequests.WithLabelValues("thumbnail", "hit")))
	assert.Zero(t, fx.conv.calls.Load())
}

func TestThumbnailKeepsSmallImages(t *testing.T) {
	fx := newFixture(t, preview.WithThumbnailWidth(200))
	src := writeImage(t, fx.srcDir, "icon.jpg", 64, 32)
	f := &models.StoredFile{OriginalName: "icon.jpg", StoredName: "icon.jpg"}

	target, err := fx.renderer.Thumbnail(context.Background(), project, f, src)
	require.NoError(t, err)

	img, err := imaging.Open(target)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestThumbnailRejectsNonImages(t *testing.T) {
	fx := newFixture(t)
	f, src := fx.source(t, "design.docx")

	_, err := fx.renderer.Thumbnail(context.Background(), project, f, src)
	assert.True(t, errors.Is(err, models.ErrNotRenderable))
}

func TestThumbnailCorruptImage(t *testing.T) {
	fx := newFixture(t)
	src := filepath.Join(fx.srcDir, "broken.png")
	require.NoError(t, os.WriteFile(src, []byte("not a png"), 0o644))
	f := &models.StoredFile{OriginalName: "broken.png", StoredName: "broken.png"}

	_, err := fx.renderer.Thumbnail(context.Background(), project, f, src)
	assert.True(t, errors.Is(err, models.ErrConverterFailure))

	_, statErr := os.Stat(fx.renderer.ThumbnailPath(project, f))
	assert.True(t, os.IsNotExist(statErr))
}

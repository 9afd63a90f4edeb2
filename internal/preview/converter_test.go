package preview_test

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/PaulBabatuyi/projectfiles/internal/preview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSoffice installs a shell script that stands in for the office binary.
// Arguments arrive as:
// -env:UserInstallation=URL --headless --nologo --invisible --convert-to pdf --outdir DIR SRC.
func fakeSoffice(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script converter")
	}
	path := filepath.Join(t.TempDir(), "soffice")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestSofficeConverterWritesPDF(t *testing.T) {
	bin := fakeSoffice(t, `base=$(basename "$9"); printf '%%PDF' > "$8/${base%.*}.pdf"`)
	src := filepath.Join(t.TempDir(), "plan.docx")
	require.NoError(t, os.WriteFile(src, []byte("doc"), 0o644))
	out := t.TempDir()

	err := preview.NewSofficeConverter(bin).Convert(context.Background(), src, out)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "plan.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
}

func TestSofficeConverterUsesPrivateProfile(t *testing.T) {
	bin := fakeSoffice(t, `printf '%s' "$1" > "$8/args"`)
	out := filepath.Join(t.TempDir(), "with space")
	require.NoError(t, os.Mkdir(out, 0o755))

	err := preview.NewSofficeConverter(bin).Convert(context.Background(), "plan.docx", out)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "args"))
	require.NoError(t, err)
	want := (&url.URL{Scheme: "file", Path: filepath.Join(out, preview.ProfileDir)}).String()
	assert.Equal(t, "-env:UserInstallation="+want, string(data))
	assert.Contains(t, string(data), "with%20space")
}

// Two conversions into different staging dirs never share a profile.
func TestSofficeConverterProfilePerOutDir(t *testing.T) {
	bin := fakeSoffice(t, `printf '%s' "$1" > "$8/args"`)
	conv := preview.NewSofficeConverter(bin)

	var seen []string
	for i := 0; i < 2; i++ {
		out := t.TempDir()
		require.NoError(t, conv.Convert(context.Background(), "plan.docx", out))
		data, err := os.ReadFile(filepath.Join(out, "args"))
		require.NoError(t, err)
		seen = append(seen, string(data))
	}
	assert.NotEqual(t, seen[0], seen[1])
}

func TestSofficeConverterFailureIncludesOutput(t *testing.T) {
	bin := fakeSoffice(t, `echo "source file could not be loaded" >&2; exit 3`)

	err := preview.NewSofficeConverter(bin).Convert(context.Background(), "missing.docx", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source file could not be loaded")
	assert.False(t, errors.Is(err, preview.ErrTimeout))
}

func TestSofficeConverterTimeout(t *testing.T) {
	bin := fakeSoffice(t, `exec sleep 30`)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := preview.NewSofficeConverter(bin).Convert(ctx, "slow.docx", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, preview.ErrTimeout))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestNewSofficeConverterDefaultsPath(t *testing.T) {
	assert.Equal(t, "soffice", preview.NewSofficeConverter("").Path)
}

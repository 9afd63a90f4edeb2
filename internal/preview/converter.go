package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Converter turns src into a PDF written somewhere inside outDir.
type Converter interface {
	Convert(ctx context.Context, src, outDir string) error
}

// ErrTimeout marks a conversion killed because its deadline passed.
var ErrTimeout = errors.New("converter timed out")

// SofficeConverter runs LibreOffice in headless mode.
type SofficeConverter struct {
	Path string
}

func NewSofficeConverter(path string) *SofficeConverter {
	if path == "" {
		path = "soffice"
	}
	return &SofficeConverter{Path: path}
}

// ProfileDir is the LibreOffice user profile created under outDir. Concurrent
// conversions must not share one.
const ProfileDir = ".profile"

// Convert runs one conversion with its own user profile under outDir.
func (c *SofficeConverter) Convert(ctx context.Context, src, outDir string) error {
	profile, err := filepath.Abs(filepath.Join(outDir, ProfileDir))
	if err != nil {
		return fmt.Errorf("resolve profile dir: %w", err)
	}
	installation := &url.URL{Scheme: "file", Path: filepath.ToSlash(profile)}

	cmd := exec.CommandContext(ctx, c.Path,
		"-env:UserInstallation="+installation.String(),
		"--headless",
		"--nologo",
		"--invisible",
		"--convert-to", "pdf",
		"--outdir", outDir,
		src,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// children that inherit the pipes must not keep Wait blocked after a kill
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
		return fmt.Errorf("%s: %w: %s", c.Path, err, tail(stderr.String(), stdout.String()))
	}
	return nil
}

func tail(outputs ...string) string {
	for _, s := range outputs {
		if s = strings.TrimSpace(s); s != "" {
			if len(s) > 512 {
				s = s[len(s)-512:]
			}
			return s
		}
	}
	return "no output"
}

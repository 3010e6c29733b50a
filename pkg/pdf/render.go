package pdf

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const DefaultDPI = 144

var ErrNoPages = errors.New("no rendered pages found")

type IRenderer interface {
	// Render rasterises every page of pdfPath into workDir and returns the
	// JPEG paths ordered by page number.
	Render(ctx context.Context, pdfPath string, workDir string) ([]string, error)
}

type renderer struct {
	binary string
	dpi    int
}

func NewRenderer(dpi int) IRenderer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &renderer{
		binary: "pdftoppm",
		dpi:    dpi,
	}
}

func (r *renderer) Render(ctx context.Context, pdfPath string, workDir string) ([]string, error) {
	prefix := filepath.Join(workDir, "page")
	args := []string{"-jpeg", "-r", strconv.Itoa(r.dpi), pdfPath, prefix}

	cmd := exec.CommandContext(ctx, r.binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	matches, err := filepath.Glob(prefix + "-*.jpg")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNoPages
	}

	sort.Slice(matches, func(i, j int) bool {
		return PageIndexFromName(matches[i]) < PageIndexFromName(matches[j])
	})

	return matches, nil
}

// PageIndexFromName recovers the zero based page index from a pdftoppm output
// name such as page-007.jpg.
func PageIndexFromName(path string) int {
	base := filepath.Base(path)
	idx := strings.LastIndex(base, "-")
	if idx >= 0 {
		number := strings.TrimSuffix(base[idx+1:], ".jpg")
		if v, err := strconv.Atoi(number); err == nil {
			return v - 1
		}
	}
	return 0
}

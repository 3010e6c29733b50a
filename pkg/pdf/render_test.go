package pdf

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageIndexFromName(t *testing.T) {
	assert.Equal(t, 0, PageIndexFromName("/tmp/work/page-1.jpg"))
	assert.Equal(t, 9, PageIndexFromName("/tmp/work/page-10.jpg"))
	assert.Equal(t, 6, PageIndexFromName("page-007.jpg"))
	assert.Equal(t, 0, PageIndexFromName("cover.jpg"))
}

func TestPageOrderingIsNumeric(t *testing.T) {
	pages := []string{"page-10.jpg", "page-2.jpg", "page-1.jpg"}
	sort.Slice(pages, func(i, j int) bool {
		return PageIndexFromName(pages[i]) < PageIndexFromName(pages[j])
	})
	assert.Equal(t, []string{"page-1.jpg", "page-2.jpg", "page-10.jpg"}, pages)
}

func TestNewRendererDefaultsDPI(t *testing.T) {
	r := NewRenderer(0).(*renderer)
	assert.Equal(t, DefaultDPI, r.dpi)
	assert.Equal(t, "pdftoppm", r.binary)
}

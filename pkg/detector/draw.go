package detector

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const strokeWidth = 2

var palette = []color.RGBA{
	{R: 230, G: 25, B: 75, A: 255},
	{R: 60, G: 180, B: 75, A: 255},
	{R: 0, G: 130, B: 200, A: 255},
	{R: 245, G: 130, B: 48, A: 255},
	{R: 145, G: 30, B: 180, A: 255},
	{R: 70, G: 240, B: 240, A: 255},
	{R: 240, G: 50, B: 230, A: 255},
	{R: 210, G: 245, B: 60, A: 255},
	{R: 0, G: 128, B: 128, A: 255},
	{R: 170, G: 110, B: 40, A: 255},
	{R: 128, G: 0, B: 0, A: 255},
	{R: 0, G: 0, B: 128, A: 255},
}

func classColor(clsID int) color.RGBA {
	if clsID < 0 {
		clsID = -clsID
	}
	return palette[clsID%len(palette)]
}

// Annotate returns a copy of page with each box outlined and captioned with
// its label and score.
func Annotate(page image.Image, boxes []Box) *image.RGBA {
	bounds := page.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), page, bounds.Min, draw.Src)

	for _, b := range boxes {
		rect := image.Rect(
			int(b.Coordinate[0]), int(b.Coordinate[1]),
			int(b.Coordinate[2]), int(b.Coordinate[3]),
		).Intersect(canvas.Bounds())
		if rect.Empty() {
			continue
		}

		col := classColor(b.ClsID)
		strokeRect(canvas, rect, col)
		caption(canvas, rect, fmt.Sprintf("%s %.2f", b.Label, b.Score), col)
	}

	return canvas
}

// blankPage is a white canvas for pages whose pixels are not available
// locally. Without a reported size it is sized to fit every box.
func blankPage(width, height int, boxes []Box) *image.RGBA {
	for _, b := range boxes {
		if x := int(b.Coordinate[2]) + 1; x > width {
			width = x
		}
		if y := int(b.Coordinate[3]) + 1; y > height {
			height = y
		}
	}
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	return canvas
}

func strokeRect(dst *image.RGBA, r image.Rectangle, col color.RGBA) {
	src := image.NewUniform(col)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+strokeWidth),
		image.Rect(r.Min.X, r.Max.Y-strokeWidth, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+strokeWidth, r.Max.Y),
		image.Rect(r.Max.X-strokeWidth, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

func caption(dst *image.RGBA, r image.Rectangle, text string, col color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 4
	height := face.Metrics().Height.Ceil() + 2

	top := r.Min.Y - height
	if top < dst.Bounds().Min.Y {
		top = r.Min.Y
	}
	bg := image.Rect(r.Min.X, top, r.Min.X+width, top+height).Intersect(dst.Bounds())
	draw.Draw(dst, bg, image.NewUniform(col), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(bg.Min.X+2, bg.Min.Y+face.Metrics().Ascent.Ceil()+1),
	}
	d.DrawString(text)
}

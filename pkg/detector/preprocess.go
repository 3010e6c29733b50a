package detector

import (
	"image"

	"github.com/nfnt/resize"
)

// preprocess resizes img to size x size without keeping the aspect ratio and
// lays it out as a CHW float32 tensor with RGB values scaled to [0, 1].
func preprocess(img image.Image, size int) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bicubic)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height

	data := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			idx := y*width + x
			data[idx] = float32(r>>8) / 255.0
			data[plane+idx] = float32(g>>8) / 255.0
			data[2*plane+idx] = float32(b>>8) / 255.0
		}
	}
	return data
}

// scaleFactor is the resized/original ratio as (h, w), the order the exported
// detection graph expects.
func scaleFactor(width, height, size int) [2]float32 {
	return [2]float32{
		float32(size) / float32(height),
		float32(size) / float32(width),
	}
}

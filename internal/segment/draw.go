package segment

import (
	"image"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/models"
)

const (
	boxThickness = 2
	boxIntensity = 255
)

// DrawBoxes outlines each box on the frame in place
func DrawBoxes(img *image.Gray, boxes []models.BoundingBox) {
	b := img.Bounds()
	set := func(x, y int) {
		if image.Pt(x, y).In(b) {
			img.Pix[img.PixOffset(x, y)] = boxIntensity
		}
	}

	for _, box := range boxes {
		x0, y0 := box.X, box.Y
		x1, y1 := box.X+box.Width, box.Y+box.Height
		for t := 0; t < boxThickness; t++ {
			for x := x0 - t; x <= x1+t; x++ {
				set(x, y0-t)
				set(x, y1+t)
			}
			for y := y0 - t; y <= y1+t; y++ {
				set(x0-t, y)
				set(x1+t, y)
			}
		}
	}
}

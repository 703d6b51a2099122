package report

import (
	"image"
	"image/color"
)

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// trimToContent crops img to the smallest rectangle holding every pixel that
// differs from bg, grown by pad pixels on each side. An image with no content
// is returned unchanged.
func trimToContent(img image.Image, bg color.Color, pad int) image.Image {
	bounds := img.Bounds()
	content := contentBounds(img, bg)
	if content.Empty() {
		return img
	}
	content = image.Rect(content.Min.X-pad, content.Min.Y-pad, content.Max.X+pad, content.Max.Y+pad).Intersect(bounds)

	if si, ok := img.(subImager); ok {
		return si.SubImage(content)
	}
	return img
}

func contentBounds(img image.Image, bg color.Color) image.Rectangle {
	bounds := img.Bounds()
	br, bgG, bb, ba := bg.RGBA()
	isBackground := func(x, y int) bool {
		r, g, b, a := img.At(x, y).RGBA()
		return r == br && g == bgG && b == bb && a == ba
	}
	if rgba, ok := img.(*image.RGBA); ok {
		bc := color.RGBAModel.Convert(bg).(color.RGBA)
		isBackground = func(x, y int) bool {
			i := rgba.PixOffset(x, y)
			px := rgba.Pix[i : i+4 : i+4]
			return px[0] == bc.R && px[1] == bc.G && px[2] == bc.B && px[3] == bc.A
		}
	}

	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X-1, bounds.Min.Y-1
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if isBackground(x, y) {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX || maxY < minY {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

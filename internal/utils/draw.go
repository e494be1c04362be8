package utils

import (
	"image"
	"image/color"
)

// DrawRect draws an axis-aligned rectangle outline into dst. The outline
// grows inwards from rect and is clipped to the image.
func DrawRect(dst *image.NRGBA, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	c := color.NRGBAModel.Convert(col).(color.NRGBA)
	for t := range thickness {
		yTop := rect.Min.Y + t
		yBot := rect.Max.Y - 1 - t
		if yTop > yBot {
			break
		}
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.SetNRGBA(x, yTop, c)
			dst.SetNRGBA(x, yBot, c)
		}
	}
	for t := range thickness {
		xLeft := rect.Min.X + t
		xRight := rect.Max.X - 1 - t
		if xLeft > xRight {
			break
		}
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.SetNRGBA(xLeft, y, c)
			dst.SetNRGBA(xRight, y, c)
		}
	}
}

// RectFromBox builds a rectangle from a left/top/width/height box.
func RectFromBox(left, top, width, height int) image.Rectangle {
	return image.Rect(left, top, left+width, top+height)
}

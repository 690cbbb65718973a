package tensor

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
)

// gridPadding is the pixel border drawn around every cell of a grid.
const gridPadding = 2

// ImageGrid arranges a BxCxHxW image batch into a single image with
// nrow images per row, separated by a border at padValue. Channel
// counts 1 (grayscale) and 3 (RGB) are supported; values are expected
// in [0, 1].
func ImageGrid(t *Tensor, nrow int, padValue float64) (image.Image, error) {
	if t.Dims() != 4 {
		return nil, fmt.Errorf("image grid needs a BxCxHxW tensor, got shape %v", t.Shape)
	}
	b, c, h, w := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	if c != 1 && c != 3 {
		return nil, fmt.Errorf("image grid supports 1 or 3 channels, got %d", c)
	}
	if b == 0 {
		return nil, fmt.Errorf("empty image batch")
	}
	if nrow <= 0 {
		nrow = 8
	}

	cols := nrow
	if b < cols {
		cols = b
	}
	rows := (b + cols - 1) / cols

	out := newPaddedCanvas(rows, cols, h, w, padValue)
	for i := 0; i < b; i++ {
		x0 := gridPadding + (i%cols)*(w+gridPadding)
		y0 := gridPadding + (i/cols)*(h+gridPadding)
		blitCell(out, t, []int{i}, c, h, w, x0, y0)
	}
	return out, nil
}

// VideoGrid arranges a BxTxCxHxW video batch into a single image with
// one row per batch element and one column per frame.
func VideoGrid(t *Tensor, padValue float64) (image.Image, error) {
	if t.Dims() != 5 {
		return nil, fmt.Errorf("video grid needs a BxTxCxHxW tensor, got shape %v", t.Shape)
	}
	b, frames, c, h, w := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3], t.Shape[4]
	if c != 1 && c != 3 {
		return nil, fmt.Errorf("video grid supports 1 or 3 channels, got %d", c)
	}

	out := newPaddedCanvas(b, frames, h, w, padValue)
	for i := 0; i < b; i++ {
		for f := 0; f < frames; f++ {
			x0 := gridPadding + f*(w+gridPadding)
			y0 := gridPadding + i*(h+gridPadding)
			blitCell(out, t, []int{i, f}, c, h, w, x0, y0)
		}
	}
	return out, nil
}

// Frames splits a BxTxCxHxW video batch into one grid image per frame,
// each laid out like ImageGrid.
func Frames(t *Tensor, nrow int, padValue float64) ([]image.Image, error) {
	if t.Dims() != 5 {
		return nil, fmt.Errorf("frames needs a BxTxCxHxW tensor, got shape %v", t.Shape)
	}
	b, frames, c, h, w := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3], t.Shape[4]

	out := make([]image.Image, 0, frames)
	for f := 0; f < frames; f++ {
		frame := Zeros(b, c, h, w)
		for i := 0; i < b; i++ {
			for ch := 0; ch < c; ch++ {
				for y := 0; y < h; y++ {
					for x := 0; x < w; x++ {
						frame.Set(t.At(i, f, ch, y, x), i, ch, y, x)
					}
				}
			}
		}
		img, err := ImageGrid(frame, nrow, padValue)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

// EncodeJPEG writes img to path as a JPEG file.
func EncodeJPEG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

func newPaddedCanvas(rows, cols, h, w int, padValue float64) *image.RGBA {
	width := cols*(w+gridPadding) + gridPadding
	height := rows*(h+gridPadding) + gridPadding
	out := image.NewRGBA(image.Rect(0, 0, width, height))

	pad := toByte(padValue)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out.SetRGBA(x, y, color.RGBA{R: pad, G: pad, B: pad, A: 255})
		}
	}
	return out
}

// blitCell copies one CxHxW cell addressed by the leading indices in
// head into the canvas at (x0, y0).
func blitCell(out *image.RGBA, t *Tensor, head []int, c, h, w, x0, y0 int) {
	idx := make([]int, len(head)+3)
	copy(idx, head)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx[len(head)+1] = y
			idx[len(head)+2] = x

			var r, g, b uint8
			if c == 1 {
				idx[len(head)] = 0
				v := toByte(t.At(idx...))
				r, g, b = v, v, v
			} else {
				idx[len(head)] = 0
				r = toByte(t.At(idx...))
				idx[len(head)] = 1
				g = toByte(t.At(idx...))
				idx[len(head)] = 2
				b = toByte(t.At(idx...))
			}
			out.SetRGBA(x0+x, y0+y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
}

func toByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

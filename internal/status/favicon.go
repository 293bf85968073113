package status

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"sync"
)

var (
	iconOnce  sync.Once
	iconBytes []byte
)

// favicon lazily generates a small 32x32 .ico, adapted from the reference
// proxy's systray icon generator: same block-drawing/ICO-encoding
// technique, redrawn for this proxy rather than a desktop tray icon.
func favicon() []byte {
	iconOnce.Do(func() { iconBytes = generateIcon() })
	return iconBytes
}

func generateIcon() []byte {
	const size = 32
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	pgBlue := color.RGBA{R: 0x33, G: 0x67, B: 0x91, A: 0xFF}
	white := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

	cx, cy := float64(size)/2, float64(size)/2
	r := float64(size)/2 - 1
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			if dx*dx+dy*dy <= r*r {
				img.Set(x, y, pgBlue)
			} else {
				img.Set(x, y, color.RGBA{})
			}
		}
	}

	drawArc(img, cx, cy+3, r-6, white)
	drawRollbackArrow(img, cx, cy, r-10, white)

	return encodeICOFromRGBA(img)
}

func drawArc(img *image.RGBA, cx, cy, radius float64, c color.RGBA) {
	if radius <= 0 {
		return
	}
	for deg := 210.0; deg <= 330.0; deg += 2 {
		angle := deg * math.Pi / 180.0
		x := int(math.Round(cx + radius*math.Cos(angle)))
		y := int(math.Round(cy + radius*math.Sin(angle)))
		if image.Pt(x, y).In(img.Bounds()) {
			img.Set(x, y, c)
		}
	}
}

// drawRollbackArrow traces most of a circle with a small gap, evoking an
// "undo"/rollback arrow rather than the reference icon's lettering.
func drawRollbackArrow(img *image.RGBA, cx, cy, radius float64, c color.RGBA) {
	if radius <= 0 {
		return
	}
	for deg := 20.0; deg <= 320.0; deg += 3 {
		angle := deg * math.Pi / 180.0
		x := int(math.Round(cx + radius*math.Cos(angle)))
		y := int(math.Round(cy + radius*math.Sin(angle)))
		if image.Pt(x, y).In(img.Bounds()) {
			img.Set(x, y, c)
		}
	}
}

// encodeICOFromRGBA builds a minimal single-frame 32-bit .ico.
func encodeICOFromRGBA(img *image.RGBA) []byte {
	const (
		icoHeaderSize = 6
		icoEntrySize  = 16
		bmpHeaderSize = 40
	)

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	xorSize := w * h * 4
	andRowBytes := ((w + 31) / 32) * 4
	andSize := andRowBytes * h
	imageDataSize := bmpHeaderSize + xorSize + andSize

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))

	buf.WriteByte(byte(w))
	buf.WriteByte(byte(h))
	buf.WriteByte(0)
	buf.WriteByte(0)
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(32))
	binary.Write(&buf, binary.LittleEndian, uint32(imageDataSize))
	binary.Write(&buf, binary.LittleEndian, uint32(icoHeaderSize+icoEntrySize))

	binary.Write(&buf, binary.LittleEndian, uint32(bmpHeaderSize))
	binary.Write(&buf, binary.LittleEndian, int32(w))
	binary.Write(&buf, binary.LittleEndian, int32(h*2))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(32))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(xorSize+andSize))
	binary.Write(&buf, binary.LittleEndian, int32(0))
	binary.Write(&buf, binary.LittleEndian, int32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(0))

	for y := h - 1; y >= 0; y-- {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			buf.WriteByte(byte(b >> 8))
			buf.WriteByte(byte(g >> 8))
			buf.WriteByte(byte(r >> 8))
			buf.WriteByte(byte(a >> 8))
		}
	}
	for i := 0; i < andSize; i++ {
		buf.WriteByte(0)
	}

	return buf.Bytes()
}

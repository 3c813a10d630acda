package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"ember/hal"
	"ember/kernel"

	"github.com/rs/zerolog"
	"tinygo.org/x/tinyfont"
)

// installFaultHandler reports kernel faults on the log and the display.
func installFaultHandler(h hal.HAL, log zerolog.Logger) {
	kernel.SetFaultHandler(func(f kernel.Fault) {
		log.Error().Uint8("task", uint8(f.Task)).Str("reason", f.Reason).Msg("kernel fault")
		if l := h.Logger(); l != nil && len(f.Stack) > 0 {
			for _, line := range strings.Split(string(f.Stack), "\n") {
				if line == "" {
					continue
				}
				l.WriteLineString(line)
			}
		}
		drawFault(h.Display(), f)
	})
}

func drawFault(disp hal.Display, f kernel.Fault) {
	if disp == nil {
		return
	}
	fb := disp.Framebuffer()
	if fb == nil || fb.Buffer() == nil {
		return
	}
	fb.ClearRGB(255, 255, 255)

	font := &tinyfont.TomThumb
	const fontHeight, fontOffset = int16(7), int16(5)
	_, outboxWidth := tinyfont.LineWidth(font, "0")
	fontWidth := int16(outboxWidth)
	if fontWidth <= 0 {
		_ = fb.Present()
		return
	}

	d := faultDisplay{fb: fb}
	lines := []string{
		"Ember kernel fault:",
		fmt.Sprintf("task: %d", f.Task),
		"reason: " + f.Reason,
	}
	if len(f.Stack) > 0 {
		lines = append(lines, "stack:")
		for _, line := range strings.Split(string(f.Stack), "\n") {
			if line == "" {
				continue
			}
			lines = append(lines, line)
		}
	} else {
		lines = append(lines, "stack: unavailable")
	}

	fg := color.RGBA{R: 0, G: 0, B: 0, A: 255}

	y := int16(0)
	maxW, maxH := fb.Width(), fb.Height()
	cols := int16(maxW) / fontWidth
	if cols <= 0 {
		cols = 1
	}

	for _, line := range lines {
		for len(line) > 0 {
			if y+fontHeight > int16(maxH) {
				_ = fb.Present()
				return
			}
			chunk, rest := takeRunes(line, cols)
			drawTextLine(d, font, fontWidth, fontOffset, 0, y, chunk, fg)
			y += fontHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
	_ = fb.Present()
}

func drawTextLine(
	d faultDisplay,
	font tinyfont.Fonter,
	fontWidth, fontOffset int16,
	x0, y0 int16,
	s string,
	fg color.RGBA,
) {
	drawX := x0
	for _, r := range s {
		tinyfont.DrawChar(d, font, drawX, y0+fontOffset, r, fg)
		drawX += fontWidth
	}
}

type faultDisplay struct {
	fb hal.Framebuffer
}

func (d faultDisplay) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d faultDisplay) SetPixel(x, y int16, c color.RGBA) {
	if d.fb == nil || d.fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	buf := d.fb.Buffer()
	if buf == nil {
		return
	}

	ix := int(x)
	iy := int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}

	pixel := hal.RGB565(c.R, c.G, c.B)
	off := iy*d.fb.StrideBytes() + ix*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d faultDisplay) Display() error { return nil }

func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if int64(len(s)) <= int64(n) {
		return s, ""
	}
	var i int
	var count int16
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		if size <= 0 {
			break
		}
		i += size
		count++
	}
	if i >= len(s) {
		return s, ""
	}
	return s[:i], s[i:]
}

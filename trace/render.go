package trace

import (
	"errors"
	"fmt"
	"image/color"

	"ember/hal"
	"ember/kernel"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
)

const (
	labelWidth = 44
	headerH    = 10
	rowH       = 10
	barInset   = 2
)

var (
	colorBG     = color.RGBA{R: 0x10, G: 0x12, B: 0x18, A: 0xFF}
	colorText   = color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	colorGrid   = color.RGBA{R: 0x30, G: 0x34, B: 0x40, A: 0xFF}
	colorMarker = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}

	palette = []color.RGBA{
		{R: 0x4A, G: 0xD1, B: 0xFF, A: 0xFF},
		{R: 0xFF, G: 0xB0, B: 0x3B, A: 0xFF},
		{R: 0x7C, G: 0xE5, B: 0x7C, A: 0xFF},
		{R: 0xFF, G: 0x6B, B: 0x6B, A: 0xFF},
		{R: 0xC7, G: 0x8B, B: 0xFF, A: 0xFF},
		{R: 0xFF, G: 0xE6, B: 0x6D, A: 0xFF},
	}
)

var errFormat = errors.New("trace: framebuffer must be RGB565")

// Render draws a Gantt chart of the retained samples onto fb: one row per
// task that held the CPU, one column per tick, newest on the right, with a
// marker on every second boundary.
func (r *Recorder) Render(fb hal.Framebuffer, names map[kernel.TaskID]string) error {
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 || fb.Buffer() == nil {
		return errFormat
	}
	d := &fbDisplay{fb: fb}
	w, h := fb.Width(), fb.Height()
	fillRect(d, 0, 0, w, h, colorBG)

	samples := r.Samples()
	cols := w - labelWidth
	if cols <= 0 {
		return fb.Present()
	}
	if len(samples) > cols {
		samples = samples[len(samples)-cols:]
	}

	var clock kernel.Clock
	if len(samples) > 0 {
		clock = samples[len(samples)-1].Clock
	}
	header := fmt.Sprintf("%s  tick %d  sw %d", clock, r.ticks, r.switches)
	tinyfont.WriteLine(d, &tinyfont.TomThumb, 2, headerH-3, header, colorText)

	rows := map[kernel.TaskID]int{}
	var seen kernel.TaskSet
	for _, s := range samples {
		if !s.Idle {
			seen = seen.With(s.Task)
		}
	}
	row := 0
	seen.Each(func(id kernel.TaskID) {
		rows[id] = row
		y := headerH + row*rowH
		if y+rowH > h {
			return
		}
		label := fmt.Sprintf("%d", id)
		if n := names[id]; n != "" {
			label += " " + n
		}
		tinyfont.WriteLine(d, &tinyfont.TomThumb, 2, int16(y+rowH-3), label, colorText)
		fillRect(d, labelWidth, y+rowH-1, cols, 1, colorGrid)
		row++
	})

	for i, s := range samples {
		x := labelWidth + i
		if s.Clock.Millis == 0 {
			fillRect(d, x, headerH, 1, row*rowH, colorMarker)
		}
		if s.Idle {
			continue
		}
		ri, ok := rows[s.Task]
		if !ok {
			continue
		}
		y := headerH + ri*rowH
		if y+rowH > h {
			continue
		}
		fillRect(d, x, y+barInset, 1, rowH-2*barInset, palette[int(s.Task)%len(palette)])
	}
	return fb.Present()
}

func fillRect(d *fbDisplay, x, y, w, h int, c color.RGBA) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			d.SetPixel(int16(xx), int16(yy), c)
		}
	}
}

// fbDisplay adapts a framebuffer to the tinyfont drawing contract.
type fbDisplay struct {
	fb hal.Framebuffer
}

var _ drivers.Displayer = (*fbDisplay)(nil)

func (d *fbDisplay) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	buf := d.fb.Buffer()
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

func (d *fbDisplay) Display() error { return nil }

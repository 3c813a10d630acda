package trace

import (
	"bytes"
	"image/color"
	"testing"

	"ember/hal"
	"ember/kernel"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingKeepsNewest(t *testing.T) {
	r := NewRecorder(3)
	r.Tick(kernel.Clock{Millis: 1})
	r.Switch(0, false, 2)
	for i := uint32(2); i <= 5; i++ {
		r.Tick(kernel.Clock{Millis: i})
	}

	want := []Sample{
		{Tick: 3, Task: 2, Clock: kernel.Clock{Millis: 3}},
		{Tick: 4, Task: 2, Clock: kernel.Clock{Millis: 4}},
		{Tick: 5, Task: 2, Clock: kernel.Clock{Millis: 5}},
	}
	if diff := cmp.Diff(want, r.Samples()); diff != "" {
		t.Fatalf("samples (-want +got):\n%s", diff)
	}
}

func TestSummaryCountsTicksPerTask(t *testing.T) {
	r := NewRecorder(8)
	r.Tick(kernel.Clock{})
	r.Switch(0, false, 1)
	r.Tick(kernel.Clock{})
	r.Tick(kernel.Clock{})
	r.Switch(1, true, 31)
	r.Tick(kernel.Clock{})
	r.NotifyBoundary(kernel.Millisecond)
	r.NotifyBoundary(kernel.Second)
	r.NotifyBoundary(kernel.Hour + 3)

	s := r.Summary()
	assert.Equal(t, uint64(4), s.Ticks)
	assert.Equal(t, uint64(2), s.Switches)
	assert.Equal(t, map[kernel.TaskID]uint64{1: 2, 31: 1}, s.PerTask)
	assert.Equal(t, map[kernel.Granularity]uint64{kernel.Millisecond: 1, kernel.Second: 1}, s.Boundaries)
	assert.True(t, r.Samples()[0].Idle)
}

func TestWriteText(t *testing.T) {
	r := NewRecorder(8)
	r.Switch(0, false, 1)
	r.Tick(kernel.Clock{})
	r.Tick(kernel.Clock{})
	r.Switch(1, true, 4)
	r.Tick(kernel.Clock{})
	r.Tick(kernel.Clock{})

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf, map[kernel.TaskID]string{1: "sensor"}))
	out := buf.String()
	assert.Regexp(t, `switches\s+2\n`, out)
	assert.Regexp(t, `sec boundaries\s+0\n`, out)
	assert.Regexp(t, `\n1\s+sensor\s+2\s+50\.0%\n`, out)
	assert.Regexp(t, `\n4\s+-\s+2\s+50\.0%\n`, out)
}

type memFB struct {
	w, h    int
	buf     []byte
	present int
}

func newMemFB(w, h int) *memFB { return &memFB{w: w, h: h, buf: make([]byte, w*h*2)} }

func (f *memFB) Width() int              { return f.w }
func (f *memFB) Height() int             { return f.h }
func (f *memFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *memFB) StrideBytes() int        { return f.w * 2 }
func (f *memFB) Buffer() []byte          { return f.buf }
func (f *memFB) ClearRGB(r, g, b uint8)  {}
func (f *memFB) Present() error          { f.present++; return nil }

func (f *memFB) at(x, y int) uint16 {
	off := y*f.w*2 + x*2
	return uint16(f.buf[off]) | uint16(f.buf[off+1])<<8
}

func rgb(c color.RGBA) uint16 { return hal.RGB565(c.R, c.G, c.B) }

func TestRenderDrawsRowsPerTask(t *testing.T) {
	r := NewRecorder(16)
	r.Switch(0, false, 3)
	r.Tick(kernel.Clock{Millis: 1})
	r.Tick(kernel.Clock{Millis: 2})
	r.Switch(3, true, 7)
	r.Tick(kernel.Clock{Millis: 3})

	fb := newMemFB(labelWidth+10, 40)
	require.NoError(t, r.Render(fb, map[kernel.TaskID]string{3: "a"}))
	assert.Equal(t, 1, fb.present)

	mid := rowH / 2
	row3 := headerH + mid
	row7 := headerH + rowH + mid
	assert.Equal(t, rgb(palette[3]), fb.at(labelWidth, row3))
	assert.Equal(t, rgb(palette[3]), fb.at(labelWidth+1, row3))
	assert.Equal(t, rgb(colorBG), fb.at(labelWidth+2, row3))
	assert.Equal(t, rgb(palette[7%len(palette)]), fb.at(labelWidth+2, row7))
	assert.Equal(t, rgb(colorBG), fb.at(labelWidth+5, row7))

	var text int
	for x := 0; x < labelWidth; x++ {
		for y := 0; y < headerH; y++ {
			if fb.at(x, y) == rgb(colorText) {
				text++
			}
		}
	}
	assert.Positive(t, text, "header text drawn")
}

func TestRenderRejectsOtherFormats(t *testing.T) {
	require.ErrorIs(t, NewRecorder(1).Render(nil, nil), errFormat)
}

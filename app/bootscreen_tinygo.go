//go:build tinygo && bootdebug

package app

import (
	"image/color"
	"machine"

	"ember/hal"

	"tinygo.org/x/tinyfont"
)

// bootSteps lists the steps shown so far; the screen keeps the whole history
// so a hang shows how far boot got.
var bootSteps []string

// bootScreen reports a boot step on the logger, USB CDC and the display.
func bootScreen(h hal.HAL, msg string) {
	line := "boot: " + msg
	if usb := machine.USBCDC; usb != nil {
		_, _ = usb.Write([]byte(line + "\r\n"))
	}
	if h == nil {
		return
	}
	if l := h.Logger(); l != nil {
		l.WriteLineString(line)
	}
	bootSteps = append(bootSteps, msg)

	disp := h.Display()
	if disp == nil {
		return
	}
	fb := disp.Framebuffer()
	if fb == nil || fb.Buffer() == nil {
		return
	}
	fb.ClearRGB(0, 0, 0)

	d := faultDisplay{fb: fb}
	font := &tinyfont.TomThumb
	fg := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	tinyfont.WriteLine(d, font, 0, 8, "Ember boot", fg)
	y := int16(18)
	for _, step := range bootSteps {
		tinyfont.WriteLine(d, font, 0, y, step, fg)
		y += 10
	}
	_ = fb.Present()
}

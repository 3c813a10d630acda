//go:build !tinygo

package hal

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHeadlessStopsAfterTicks(t *testing.T) {
	h := newHostHAL(&bytes.Buffer{})
	steps := 0
	err := runHeadless(context.Background(), h, func(HAL) (func() error, error) {
		return func() error { steps++; return nil }, nil
	}, HeadlessConfig{Hz: 1000, Ticks: 3, StepBudget: 4})

	require.NoError(t, err)
	assert.Equal(t, 12, steps)
}

func TestRunHeadlessHaltIsClean(t *testing.T) {
	h := newHostHAL(&bytes.Buffer{})
	steps := 0
	err := runHeadless(context.Background(), h, func(HAL) (func() error, error) {
		return func() error {
			steps++
			if steps == 2 {
				return ErrHalt
			}
			return nil
		}, nil
	}, HeadlessConfig{Hz: 1000})

	require.NoError(t, err)
	assert.Equal(t, 2, steps)
}

func TestRunHeadlessPropagatesErrors(t *testing.T) {
	h := newHostHAL(&bytes.Buffer{})
	boom := errors.New("boom")

	err := runHeadless(context.Background(), h, func(HAL) (func() error, error) {
		return nil, boom
	}, HeadlessConfig{})
	require.ErrorIs(t, err, boom)

	err = runHeadless(context.Background(), h, func(HAL) (func() error, error) {
		return func() error { return boom }, nil
	}, HeadlessConfig{Hz: 1000})
	require.ErrorIs(t, err, boom)
}

func TestRunHeadlessHonorsContext(t *testing.T) {
	h := newHostHAL(&bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runHeadless(ctx, h, func(HAL) (func() error, error) {
		return func() error { return nil }, nil
	}, HeadlessConfig{Hz: 1})
	require.ErrorIs(t, err, context.Canceled)
}

func TestHostLoggerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	h := newHostHAL(&buf)
	h.Logger().WriteLineString("a")
	h.Logger().WriteLineBytes([]byte("b"))
	assert.Equal(t, "a\nb\n", buf.String())
}

func TestHostFramebufferClear(t *testing.T) {
	h := newHostHAL(&bytes.Buffer{})
	fb := h.Display().Framebuffer()
	fb.ClearRGB(0xFF, 0, 0)

	buf := fb.Buffer()
	require.Len(t, buf, fb.StrideBytes()*fb.Height())
	assert.Equal(t, uint16(0xF800), uint16(buf[0])|uint16(buf[1])<<8)
	r, g, b := RGB888(0xF800)
	assert.Equal(t, [3]uint8{0xFF, 0, 0}, [3]uint8{r, g, b})
}

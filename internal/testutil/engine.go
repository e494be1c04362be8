package testutil

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/notely/internal/ocr"
)

// FakeEngine is a scripted ocr.Engine. Results are chosen by the width of
// the image the engine receives, which keeps them deterministic under
// parallel processing.
type FakeEngine struct {
	ByWidth map[int]*ocr.Data
	Default *ocr.Data
	ErrOn   map[int]error
	PanicOn map[int]bool
	Delay   time.Duration

	calls    atomic.Int64
	mu       sync.Mutex
	requests []ocr.Request
}

// Name implements ocr.Engine.
func (f *FakeEngine) Name() string { return "fake" }

// Recognize implements ocr.Engine.
func (f *FakeEngine) Recognize(ctx context.Context, img image.Image, req ocr.Request) (*ocr.Data, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	w := img.Bounds().Dx()
	if f.PanicOn[w] {
		panic("fake engine crashed")
	}
	if err := f.ErrOn[w]; err != nil {
		return nil, err
	}
	if d, ok := f.ByWidth[w]; ok {
		return cloneData(d), nil
	}
	if f.Default != nil {
		return cloneData(f.Default), nil
	}
	return &ocr.Data{}, nil
}

// Calls returns how many times Recognize ran.
func (f *FakeEngine) Calls() int { return int(f.calls.Load()) }

// Requests returns the received requests.
func (f *FakeEngine) Requests() []ocr.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ocr.Request(nil), f.requests...)
}

// Words builds engine output with one token per text, laid out left to
// right on a single line, all with confidence conf.
func Words(conf int, texts ...string) *ocr.Data {
	d := &ocr.Data{}
	x := 10
	for _, t := range texts {
		w := 8 * max(len(t), 1)
		d.Append(ocr.Token{Left: x, Top: 10, Width: w, Height: 14, Conf: conf, Text: t})
		x += w + 6
	}
	return d
}

// Tokens builds engine output from explicit tokens.
func Tokens(tokens ...ocr.Token) *ocr.Data {
	d := &ocr.Data{}
	for _, t := range tokens {
		d.Append(t)
	}
	return d
}

func cloneData(d *ocr.Data) *ocr.Data {
	return &ocr.Data{
		Left:   append([]int(nil), d.Left...),
		Top:    append([]int(nil), d.Top...),
		Width:  append([]int(nil), d.Width...),
		Height: append([]int(nil), d.Height...),
		Conf:   append([]int(nil), d.Conf...),
		Text:   append([]string(nil), d.Text...),
	}
}

package common

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultWorkers = 4
	MaxColor       = 255
	Magic          = "P6"
)

var ErrEmptyImage = errors.New("image must be at least 1x1")

// Pixel is one RGB sample. There is no alpha channel.
type Pixel struct {
	R, G, B uint8
}

// Buffer is a row-major grid of pixels. len(Pix) is always Width*Height.
type Buffer struct {
	Width  int
	Height int
	Pix    []Pixel
}

func NewBuffer(width, height int) (*Buffer, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrEmptyImage, width, height)
	}
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]Pixel, width*height),
	}, nil
}

func (b *Buffer) Len() int {
	return len(b.Pix)
}

func (b *Buffer) Index(col, row int) int {
	return row*b.Width + col
}

func (b *Buffer) At(col, row int) Pixel {
	return b.Pix[b.Index(col, row)]
}

func (b *Buffer) Set(col, row int, p Pixel) {
	b.Pix[b.Index(col, row)] = p
}

// Clone returns a copy that shares no memory with b.
func (b *Buffer) Clone() *Buffer {
	pix := make([]Pixel, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Range is one worker's share of a buffer's flat index space.
type Range struct {
	Start int
	Count int
}

func (r Range) End() int {
	return r.Start + r.Count
}

type ImageInfo struct {
	ID         int       `json:"id"`
	InputPath  string    `json:"input_path"`
	OutputPath string    `json:"output_path"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Workers    int       `json:"workers"`
	StartTime  time.Time `json:"start_time"`
}

package laplacian

import (
	"errors"
	"fmt"

	"go-edge/pkg/common"
)

const Size = 3

var ErrInvalidWorkers = errors.New("worker count must be at least 1")

// Kernel is the 3x3 Laplacian stencil, indexed [row][col]. Its
// coefficients sum to zero.
var Kernel = [Size][Size]int{
	{-1, -1, -1},
	{-1, 8, -1},
	{-1, -1, -1},
}

// Sum returns the sum of the kernel coefficients.
func Sum() int {
	total := 0
	for _, row := range Kernel {
		for _, v := range row {
			total += v
		}
	}
	return total
}

// Partition splits [0, total) into one contiguous range per worker. Every
// range holds total/workers pixels except the last, which runs to total.
func Partition(total, workers int) ([]common.Range, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkers, workers)
	}
	if total < 0 {
		return nil, fmt.Errorf("negative pixel count %d", total)
	}

	base := total / workers
	ranges := make([]common.Range, workers)
	for i := range ranges {
		ranges[i] = common.Range{Start: i * base, Count: base}
	}
	last := &ranges[workers-1]
	last.Count = total - last.Start
	return ranges, nil
}

// Clamp saturates a channel sum to [0, 255].
func Clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > common.MaxColor {
		return common.MaxColor
	}
	return uint8(v)
}

// FilterPixel convolves the pixel at flat index idx. Neighbours wrap
// around the image edges, so border pixels sample the opposite side.
func FilterPixel(src *common.Buffer, idx int) common.Pixel {
	w, h := src.Width, src.Height
	row := idx / w
	col := idx % w

	var red, green, blue int
	for dk := 0; dk < Size; dk++ {
		y := (row - Size/2 + dk + h) % h
		for dj := 0; dj < Size; dj++ {
			x := (col - Size/2 + dj + w) % w
			p := src.Pix[y*w+x]
			weight := Kernel[dk][dj]

			red += int(p.R) * weight
			green += int(p.G) * weight
			blue += int(p.B) * weight
		}
	}

	return common.Pixel{R: Clamp(red), G: Clamp(green), B: Clamp(blue)}
}

// ApplyRange filters the pixels of r from src into dst. src is only read;
// dst is written at indices inside r and nowhere else, so workers holding
// disjoint ranges may share dst without locking.
func ApplyRange(src, dst *common.Buffer, r common.Range) {
	for idx := r.Start; idx < r.End(); idx++ {
		dst.Pix[idx] = FilterPixel(src, idx)
	}
}

package processor

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"go-edge/pkg/common"
	"go-edge/pkg/laplacian"
)

// Engine filters one image at a time across a fixed number of workers.
// An Engine is safe for concurrent use by several images.
type Engine struct {
	numWorkers      int
	pixelsProcessed atomic.Int64
}

func NewEngine(numWorkers int) (*Engine, error) {
	if numWorkers < 1 {
		return nil, fmt.Errorf("%w: got %d", laplacian.ErrInvalidWorkers, numWorkers)
	}
	return &Engine{numWorkers: numWorkers}, nil
}

func (e *Engine) Workers() int {
	return e.numWorkers
}

// PixelsProcessed reports how many pixels all Apply calls have filtered.
func (e *Engine) PixelsProcessed() int64 {
	return e.pixelsProcessed.Load()
}

// Apply runs the Laplacian filter over src and returns the result with the
// wall time spent. src is not modified.
func (e *Engine) Apply(src *common.Buffer) (*common.Buffer, time.Duration, error) {
	if src == nil || src.Width < 1 || src.Height < 1 || src.Len() != src.Width*src.Height {
		return nil, 0, common.ErrEmptyImage
	}

	startTime := time.Now()

	// Start from a copy so every index holds a valid pixel.
	dst := src.Clone()

	ranges, err := laplacian.Partition(src.Len(), e.numWorkers)
	if err != nil {
		return nil, 0, err
	}

	var g errgroup.Group
	for id, r := range ranges {
		id, r := id, r
		g.Go(func() error {
			return e.worker(id, src, dst, r)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	return dst, time.Since(startTime), nil
}

func (e *Engine) worker(id int, src, dst *common.Buffer, r common.Range) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("worker %d failed on range [%d, %d): %v", id, r.Start, r.End(), p)
		}
	}()

	laplacian.ApplyRange(src, dst, r)

	if count := e.pixelsProcessed.Add(int64(r.Count)); count/1_000_000 != (count-int64(r.Count))/1_000_000 {
		log.Printf("Engine: Processed %d pixels total", count)
	}
	return nil
}

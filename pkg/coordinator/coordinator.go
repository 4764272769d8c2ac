package coordinator

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"go-edge/pkg/common"
	"go-edge/pkg/ppm"
	"go-edge/pkg/processor"
)

var ErrNoImages = errors.New("no images to process")

// Recorder is notified as each image moves through the batch.
type Recorder interface {
	ImageStarted(info *common.ImageInfo) error
	ImageFinished(info *common.ImageInfo, elapsed time.Duration, procErr error) error
}

// Accumulator sums per-image filter durations across goroutines.
type Accumulator struct {
	mutex sync.Mutex
	total float64
}

func (a *Accumulator) Add(d time.Duration) {
	a.mutex.Lock()
	a.total += d.Seconds()
	a.mutex.Unlock()
}

// Total returns the accumulated time in seconds.
func (a *Accumulator) Total() float64 {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.total
}

type ImageResult struct {
	ID         int
	InputPath  string
	OutputPath string
	Width      int
	Height     int
	Elapsed    time.Duration
	Err        error
}

type BatchResult struct {
	Images       []ImageResult
	TotalElapsed float64
}

// Failed returns the results of the images that did not complete.
func (b *BatchResult) Failed() []ImageResult {
	var failed []ImageResult
	for _, img := range b.Images {
		if img.Err != nil {
			failed = append(failed, img)
		}
	}
	return failed
}

type Coordinator struct {
	engine   *processor.Engine
	recorder Recorder
	elapsed  Accumulator
}

type Option func(*Coordinator)

// WithRecorder reports image progress to r. Recorder errors are logged and
// never fail an image.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

func NewCoordinator(engine *processor.Engine, opts ...Option) *Coordinator {
	c := &Coordinator{engine: engine}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OutputPath names the result of the n-th input image (1-based).
func OutputPath(outputDir string, n int) string {
	return filepath.Join(outputDir, fmt.Sprintf("laplacian%d.ppm", n))
}

// TotalElapsed returns the filter time accumulated so far, in seconds.
func (c *Coordinator) TotalElapsed() float64 {
	return c.elapsed.Total()
}

// ProcessImage decodes, filters and writes one image. id is 0-based.
func (c *Coordinator) ProcessImage(id int, inputPath, outputPath string) ImageResult {
	res := ImageResult{ID: id, InputPath: inputPath, OutputPath: outputPath}
	log.Printf("Coordinator: Processing image %d from %s", id+1, inputPath)

	img, err := ppm.ReadFile(inputPath)
	if err != nil {
		res.Err = fmt.Errorf("failed to load image: %w", err)
		return res
	}
	res.Width, res.Height = img.Width, img.Height

	info := &common.ImageInfo{
		ID:         id,
		InputPath:  inputPath,
		OutputPath: outputPath,
		Width:      img.Width,
		Height:     img.Height,
		Workers:    c.engine.Workers(),
		StartTime:  time.Now(),
	}
	c.record(func(r Recorder) error { return r.ImageStarted(info) })

	result, elapsed, err := c.engine.Apply(img)
	if err != nil {
		res.Err = fmt.Errorf("failed to filter image: %w", err)
		c.record(func(r Recorder) error { return r.ImageFinished(info, 0, res.Err) })
		return res
	}
	res.Elapsed = elapsed

	if err := ppm.WriteFile(outputPath, result); err != nil {
		res.Err = fmt.Errorf("failed to save image: %w", err)
	}
	c.record(func(r Recorder) error { return r.ImageFinished(info, elapsed, res.Err) })

	if res.Err == nil {
		c.elapsed.Add(elapsed)
		log.Printf("Coordinator: Image %d (%dx%d) written to %s, filtered in %.4fs",
			id+1, res.Width, res.Height, outputPath, elapsed.Seconds())
	}
	return res
}

// ProcessImages runs one goroutine per input path and waits for all of
// them. Every image is attempted; the returned error joins the failures.
func (c *Coordinator) ProcessImages(inputPaths []string, outputDir string) (*BatchResult, error) {
	if len(inputPaths) == 0 {
		return nil, ErrNoImages
	}

	results := make([]ImageResult, len(inputPaths))
	var wg sync.WaitGroup

	for i, inputPath := range inputPaths {
		wg.Add(1)
		go func(id int, path string) {
			defer wg.Done()
			results[id] = c.ProcessImage(id, path, OutputPath(outputDir, id+1))
		}(i, inputPath)
	}

	wg.Wait()

	var allErrors []error
	for _, res := range results {
		if res.Err != nil {
			log.Printf("Coordinator: Image %d (%s) failed: %v", res.ID+1, res.InputPath, res.Err)
			allErrors = append(allErrors, fmt.Errorf("image %d (%s): %w", res.ID+1, res.InputPath, res.Err))
		}
	}

	batch := &BatchResult{Images: results, TotalElapsed: c.elapsed.Total()}
	if len(allErrors) > 0 {
		return batch, fmt.Errorf("failed to process %d of %d images: %w",
			len(allErrors), len(inputPaths), errors.Join(allErrors...))
	}
	return batch, nil
}

func (c *Coordinator) record(fn func(Recorder) error) {
	if c.recorder == nil {
		return
	}
	if err := fn(c.recorder); err != nil {
		log.Printf("Coordinator: Warning: recorder failed: %v", err)
	}
}

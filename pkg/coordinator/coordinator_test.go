package coordinator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-edge/pkg/common"
	"go-edge/pkg/ppm"
	"go-edge/pkg/processor"
)

func writeImage(t *testing.T, path string, width, height int, c common.Pixel) {
	t.Helper()
	img, err := common.NewBuffer(width, height)
	require.NoError(t, err)
	for i := range img.Pix {
		img.Pix[i] = c
	}
	img.Pix[0] = common.Pixel{R: c.R / 2}
	require.NoError(t, ppm.WriteFile(path, img))
}

func newCoordinator(t *testing.T, workers int, opts ...Option) *Coordinator {
	t.Helper()
	engine, err := processor.NewEngine(workers)
	require.NoError(t, err)
	return NewCoordinator(engine, opts...)
}

type event struct {
	id       int
	finished bool
	failed   bool
}

type fakeRecorder struct {
	mutex  sync.Mutex
	events []event
	err    error
}

func (f *fakeRecorder) ImageStarted(info *common.ImageInfo) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.events = append(f.events, event{id: info.ID})
	return f.err
}

func (f *fakeRecorder) ImageFinished(info *common.ImageInfo, elapsed time.Duration, procErr error) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.events = append(f.events, event{id: info.ID, finished: true, failed: procErr != nil})
	return f.err
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "laplacian1.ppm"), OutputPath("out", 1))
	assert.Equal(t, "laplacian12.ppm", OutputPath("", 12))
}

func TestWhiteImageEndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "white.ppm")

	white, err := common.NewBuffer(4, 4)
	require.NoError(t, err)
	for i := range white.Pix {
		white.Pix[i] = common.Pixel{R: 255, G: 255, B: 255}
	}
	require.NoError(t, ppm.WriteFile(input, white))

	c := newCoordinator(t, common.DefaultWorkers)
	batch, err := c.ProcessImages([]string{input}, dir)
	require.NoError(t, err)
	require.Len(t, batch.Images, 1)
	assert.Equal(t, OutputPath(dir, 1), batch.Images[0].OutputPath)

	out, err := ppm.ReadFile(OutputPath(dir, 1))
	require.NoError(t, err)
	assert.Equal(t, 4, out.Width)
	assert.Equal(t, 4, out.Height)
	for _, p := range out.Pix {
		assert.Equal(t, common.Pixel{}, p)
	}
}

func TestTotalIsSumOfImages(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for i, size := range [][2]int{{40, 30}, {17, 61}, {64, 64}} {
		path := filepath.Join(dir, fmt.Sprintf("in%d.ppm", i))
		writeImage(t, path, size[0], size[1], common.Pixel{R: 200, G: 100, B: 50})
		inputs = append(inputs, path)
	}

	c := newCoordinator(t, 3)
	batch, err := c.ProcessImages(inputs, dir)
	require.NoError(t, err)
	require.Len(t, batch.Images, 3)

	var sum float64
	for i, img := range batch.Images {
		require.NoError(t, img.Err)
		assert.Equal(t, i, img.ID)
		assert.Equal(t, inputs[i], img.InputPath)
		assert.FileExists(t, OutputPath(dir, i+1))
		sum += img.Elapsed.Seconds()
	}
	assert.InDelta(t, sum, batch.TotalElapsed, 1e-9)
	assert.InDelta(t, sum, c.TotalElapsed(), 1e-9)
	assert.Empty(t, batch.Failed())
}

func TestFailedImagesDoNotStopBatch(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.ppm")
	writeImage(t, good, 8, 8, common.Pixel{R: 10, G: 20, B: 30})

	badMagic := filepath.Join(dir, "bad.ppm")
	require.NoError(t, os.WriteFile(badMagic, []byte("P3\n1 1\n255\n0 0 0\n"), 0644))

	truncated := filepath.Join(dir, "short.ppm")
	require.NoError(t, os.WriteFile(truncated, []byte("P6\n2 2\n255\n\x00\x00"), 0644))

	missing := filepath.Join(dir, "missing.ppm")

	rec := &fakeRecorder{}
	c := newCoordinator(t, 2, WithRecorder(rec))
	batch, err := c.ProcessImages([]string{badMagic, good, missing, truncated}, dir)
	require.Error(t, err)
	require.NotNil(t, batch)

	assert.ErrorIs(t, err, ppm.ErrFormat)
	assert.ErrorIs(t, err, ppm.ErrTruncated)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "3 of 4")

	assert.ErrorIs(t, batch.Images[0].Err, ppm.ErrFormat)
	assert.NoError(t, batch.Images[1].Err)
	assert.ErrorIs(t, batch.Images[2].Err, os.ErrNotExist)
	assert.ErrorIs(t, batch.Images[3].Err, ppm.ErrTruncated)
	assert.Len(t, batch.Failed(), 3)

	assert.NoFileExists(t, OutputPath(dir, 1))
	assert.FileExists(t, OutputPath(dir, 2))
	assert.NoFileExists(t, OutputPath(dir, 3))
	assert.NoFileExists(t, OutputPath(dir, 4))

	assert.InDelta(t, batch.Images[1].Elapsed.Seconds(), batch.TotalElapsed, 1e-9)

	// only the decoded image reaches the recorder
	assert.ElementsMatch(t, []event{{id: 1}, {id: 1, finished: true}}, rec.events)
}

func TestWriteFailureIsReported(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.ppm")
	writeImage(t, input, 3, 3, common.Pixel{R: 1})

	rec := &fakeRecorder{err: errors.New("recorder down")}
	c := newCoordinator(t, 2, WithRecorder(rec))
	batch, err := c.ProcessImages([]string{input}, filepath.Join(dir, "missing-dir"))
	require.Error(t, err)
	assert.ErrorIs(t, batch.Images[0].Err, os.ErrNotExist)
	assert.Zero(t, batch.TotalElapsed)
	assert.Equal(t, []event{{id: 0}, {id: 0, finished: true, failed: true}}, rec.events)
}

func TestNoImages(t *testing.T) {
	c := newCoordinator(t, 1)
	batch, err := c.ProcessImages(nil, t.TempDir())
	assert.ErrorIs(t, err, ErrNoImages)
	assert.Nil(t, batch)
}

func TestAccumulatorConcurrentAdds(t *testing.T) {
	var acc Accumulator
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc.Add(250 * time.Millisecond)
		}()
	}
	wg.Wait()
	assert.InDelta(t, 25.0, acc.Total(), 1e-9)
}

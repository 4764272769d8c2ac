package stats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ImageTiming is the outcome of one image in a run.
type ImageTiming struct {
	InputPath  string
	OutputPath string
	Width      int
	Height     int
	FilterTime float64
	Err        error
}

// PerformanceData holds timing and metadata for one batch run.
type PerformanceData struct {
	Workers         int
	TotalFilterTime float64
	TotalTime       float64
	Timestamp       time.Time
	Images          []ImageTiming
}

func (p *PerformanceData) ImagesProcessed() int {
	n := 0
	for _, img := range p.Images {
		if img.Err == nil {
			n++
		}
	}
	return n
}

// WritePerformanceResults writes the report to <dir>/laplacian_<timestamp>.txt
// and returns the file's path.
func WritePerformanceResults(dir string, data PerformanceData) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	timestamp := data.Timestamp.Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(dir, fmt.Sprintf("laplacian_%s.txt", timestamp))

	file, err := os.Create(resultsFile)
	if err != nil {
		return "", fmt.Errorf("failed to create results file: %w", err)
	}
	defer file.Close()

	if err := WriteReport(file, data); err != nil {
		return "", err
	}
	return resultsFile, file.Close()
}

func WriteReport(w io.Writer, data PerformanceData) error {
	ew := &errWriter{w: w}

	ew.printf("=== Laplacian Edge Detection Results ===\n")
	ew.printf("Timestamp: %s\n\n", data.Timestamp.Format("2006-01-02 15:04:05"))
	ew.printf("Images processed: %d of %d\n", data.ImagesProcessed(), len(data.Images))
	ew.printf("Workers per image: %d\n", data.Workers)
	ew.printf("Total filter time: %.4fs\n", data.TotalFilterTime)
	ew.printf("Total execution time: %.4fs\n", data.TotalTime)
	if n := data.ImagesProcessed(); n > 0 {
		ew.printf("Average filter time per image: %.4fs\n", data.TotalFilterTime/float64(n))
	}

	ew.printf("\nImages:\n")
	for i, img := range data.Images {
		if img.Err != nil {
			ew.printf("  %d. %s FAILED: %v\n", i+1, img.InputPath, img.Err)
			continue
		}
		ew.printf("  %d. %s -> %s (%dx%d) %.4fs\n",
			i+1, img.InputPath, img.OutputPath, img.Width, img.Height, img.FilterTime)
	}

	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"go-edge/pkg/common"
	"go-edge/pkg/coordinator"
	"go-edge/pkg/ppm"
	"go-edge/pkg/processor"
	"go-edge/pkg/queue"
	"go-edge/pkg/stats"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the detector and returns the process exit code. Deferred
// cleanup (the Redis connection) happens before it returns.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("detector", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		numWorkers = fs.Int("workers", common.DefaultWorkers, "Number of worker goroutines per image")
		outputDir  = fs.String("output", ".", "Output directory")
		redisAddr  = fs.String("redis", "", "Redis address for run status (disabled when empty)")
		reportDir  = fs.String("report", "", "Directory for a performance report (disabled when empty)")
		quiet      = fs.Bool("quiet", false, "Suppress progress logging")
		infoOnly   = fs.Bool("info", false, "Print image dimensions and exit")
	)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: detector [flags] filename[s]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}
	if *quiet {
		log.SetOutput(io.Discard)
	}
	if *infoOnly {
		return printInfo(fs.Args(), stdout, stderr)
	}

	startTime := time.Now()
	log.Printf("=== Starting Laplacian Edge Detection ===")
	log.Printf("Images: %d, Workers per image: %d", fs.NArg(), *numWorkers)
	log.Printf("Output path: %s", *outputDir)

	engine, err := processor.NewEngine(*numWorkers)
	if err != nil {
		log.Printf("Invalid configuration: %v", err)
		return 1
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Printf("Failed to create output directory: %v", err)
		return 1
	}

	var opts []coordinator.Option
	if *redisAddr != "" {
		redisClient, err := queue.NewRedisClient(*redisAddr)
		if err != nil {
			log.Printf("Failed to connect to Redis: %v", err)
			return 1
		}
		defer redisClient.Close()
		opts = append(opts, coordinator.WithRecorder(redisClient))
	}

	coord := coordinator.NewCoordinator(engine, opts...)
	batch, batchErr := coord.ProcessImages(fs.Args(), *outputDir)
	if batch == nil {
		fmt.Fprintf(stderr, "%v\n", batchErr)
		return 1
	}

	fmt.Fprintf(stdout, "Total elapsed time: %.4f s\n", batch.TotalElapsed)

	if *reportDir != "" {
		data := stats.PerformanceData{
			Workers:         engine.Workers(),
			TotalFilterTime: batch.TotalElapsed,
			TotalTime:       time.Since(startTime).Seconds(),
			Timestamp:       startTime,
		}
		for _, img := range batch.Images {
			data.Images = append(data.Images, stats.ImageTiming{
				InputPath:  img.InputPath,
				OutputPath: img.OutputPath,
				Width:      img.Width,
				Height:     img.Height,
				FilterTime: img.Elapsed.Seconds(),
				Err:        img.Err,
			})
		}
		if path, err := stats.WritePerformanceResults(*reportDir, data); err != nil {
			log.Printf("Failed to write performance report: %v", err)
		} else {
			log.Printf("Results written to %s", path)
		}
	}

	log.Printf("=== Processing Complete ===")
	log.Printf("Total execution time: %.2fs", time.Since(startTime).Seconds())

	if batchErr != nil {
		fmt.Fprintf(stderr, "%v\n", batchErr)
		return 1
	}
	return 0
}

func printInfo(paths []string, stdout, stderr io.Writer) int {
	status := 0
	for _, path := range paths {
		width, height, err := readConfig(path)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			status = 1
			continue
		}
		fmt.Fprintf(stdout, "%s: %dx%d\n", path, width, height)
	}
	return status
}

func readConfig(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()
	return ppm.DecodeConfig(file)
}

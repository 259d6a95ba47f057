package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/visionkit/adaptiveface/detector"
	"github.com/visionkit/adaptiveface/images"
)

func main() {
	var (
		configPath    string
		imagePath     string
		dirPath       string
		singleSubject string
		showStatus    bool
		verbose       bool
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML pipeline configuration (defaults apply when empty)")
	flag.StringVar(&imagePath, "image", "", "Path to image file (.jpg, .jpeg, .png, .webp)")
	flag.StringVar(&dirPath, "dir", "", "Directory of image files to process as a batch")
	flag.StringVar(&singleSubject, "single-subject", "auto", "Single-subject refinement: auto, on, or off")
	flag.BoolVar(&showStatus, "status", false, "Print backend availability and policy tables, then exit")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	logger, err := buildLogger(verbose)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg := detector.DefaultConfig()
	if configPath != "" {
		cfg, err = detector.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("invalid configuration: %v", err)
		}
	}

	mode, err := parseSingleSubjectMode(singleSubject)
	if err != nil {
		log.Fatal(err)
	}

	pipeline, err := detector.New(cfg, logger)
	if err != nil {
		log.Fatalf("failed to build detection pipeline: %v", err)
	}
	defer pipeline.Close()

	if showStatus {
		printJSON(pipeline.Status())
		return
	}

	switch {
	case imagePath != "":
		printJSON(pipeline.DetectFile(imagePath, detector.Options{SingleSubject: mode}))
	case dirPath != "":
		files, err := images.LoadDirectory(dirPath)
		if err != nil {
			log.Fatalf("failed to load image directory: %v", err)
		}
		results := make(map[string]*detector.Result, len(files))
		for _, f := range files {
			results[f.Path] = pipeline.Detect(f.Image, detector.Options{SingleSubject: mode})
		}
		printJSON(results)
	default:
		fmt.Fprintln(os.Stderr, "error: --image or --dir is required (or use --status)")
		flag.Usage()
		os.Exit(2)
	}
}

// buildLogger returns a production logger, or a development logger with
// debug level when verbose is set.
func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func parseSingleSubjectMode(s string) (detector.SingleSubjectMode, error) {
	switch s {
	case "auto":
		return detector.SingleSubjectAuto, nil
	case "on":
		return detector.SingleSubjectOn, nil
	case "off":
		return detector.SingleSubjectOff, nil
	default:
		return 0, fmt.Errorf("invalid --single-subject value %q: want auto, on, or off", s)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("failed to encode output: %v", err)
	}
}

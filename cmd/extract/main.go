/**
 * Medical OCR Extract - one-shot command line entry point
 *
 * Processes a single report and prints the result envelope as JSON.
 * Exits with status 1 when the envelope reports a failure.
 *
 * Usage: extract [-engine tesseract|paddle|mock] [-timeout 2m] <path>
 */

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/medocr-worker/internal/config"
	"github.com/adverant/nexus/medocr-worker/internal/logging"
	"github.com/adverant/nexus/medocr-worker/internal/ocr/engines"
	"github.com/adverant/nexus/medocr-worker/internal/processor"
	"github.com/adverant/nexus/medocr-worker/internal/raster"
)

func main() {
	engineName := flag.String("engine", "", "OCR engine override (tesseract, paddle, mock)")
	timeout := flag.Duration("timeout", 2*time.Minute, "processing deadline")
	pretty := flag.Bool("pretty", false, "indent the JSON output")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <path>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	// stdout carries only the JSON envelope
	logging.SetDefaultOutput(os.Stderr)
	log.SetOutput(os.Stderr)

	_ = godotenv.Load(".env.medocr")

	if *engineName != "" {
		os.Setenv("OCR_ENGINE", *engineName)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.SetDebug(cfg.LogLevel == "debug")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	engine := engines.Init(ctx, cfg)
	closeEngine := func() {
		if closer, ok := engine.Engine.(io.Closer); ok {
			closer.Close()
		}
	}

	proc, err := processor.NewDocumentProcessor(&processor.ProcessorConfig{
		Engine: engine,
		Rasterizer: raster.NewPdftoppm(raster.Config{
			Pdftoppm: cfg.PdftoppmPath,
			DPI:      cfg.RasterDPI,
			MaxPages: cfg.MaxPages,
		}, raster.ExecRunner{}),
		UploadsDir:  cfg.UploadsDir,
		TempDir:     cfg.TempDir,
		MaxFileSize: cfg.MaxFileSize,
		Logger:      logging.NewLogger("processor"),
	})
	if err != nil {
		closeEngine()
		log.Fatalf("Failed to initialize document processor: %v", err)
	}

	result := proc.Process(ctx, flag.Arg(0))
	// os.Exit skips deferred calls
	closeEngine()
	cancel()

	encoder := json.NewEncoder(os.Stdout)
	if *pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(result); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}

	if !result.Success {
		os.Exit(1)
	}
}

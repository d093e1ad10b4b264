// Package main offline triage CLI: runs the intake core over local
// files without the analysis collaborator.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/hollowlog/magpie/adapter/archive"
	"github.com/hollowlog/magpie/adapter/capture"
	"github.com/hollowlog/magpie/adapter/report"
	"github.com/hollowlog/magpie/business/entity"
	"github.com/hollowlog/magpie/business/usecase"
	"github.com/hollowlog/magpie/pkg/compression"
	"github.com/hollowlog/magpie/pkg/config"
	"github.com/hollowlog/magpie/pkg/logger"
)

const defaultConfigFile = "magpie-server.yaml"

var (
	cfg  = &entity.ServerConfig{}
	zlog *logger.Logger

	inPath  *string
	outFile *string
	format  *string
)

func init() {
	configPath := flag.String("config", defaultConfigFile, "path to magpie configuration file")
	inPath = flag.String("in", "", "input file or directory")
	outFile = flag.String("out", "", "result file (default stdout)")
	format = flag.String("format", "text", "output format (json, html, text)")
	flag.Parse()

	if _, err := config.New(*configPath, "", cfg); err != nil {
		log.Fatalf("failed to parse config file: %v", err)
	}

	zlog = logger.New(logger.Config{
		Level:             cfg.Logger.Level,
		TimeFieldFormat:   cfg.Logger.TimeFieldFormat,
		PrettyPrint:       *cfg.Logger.PrettyPrint,
		DisableSampling:   *cfg.Logger.DisableSampling,
		RedirectStdLogger: *cfg.Logger.RedirectStdLogger,
		ErrorStack:        *cfg.Logger.ErrorStack,
		ShowCaller:        *cfg.Logger.ShowCaller,
	})
}

func main() {
	if *inPath == "" {
		zlog.Fatalf("no input file or directory")
	}

	files, err := readInput(*inPath)
	if err != nil {
		zlog.Fatalf("failed to read input: %v", err)
	}

	decompressor := compression.New(&compression.Config{
		MaxDecodedSize: cfg.Archive.MaxDecodedSize,
	})
	extractor := archive.New(&archive.Config{
		MaxEntries:   cfg.Archive.MaxEntries,
		MaxEntrySize: cfg.Archive.MaxEntrySize,
	}, decompressor)
	summarizer := capture.NewSummarizer(&capture.Config{
		MaxRenderedPackets: cfg.Intake.MaxRenderedPackets,
	})

	intakeUseCase := usecase.NewIntakeUseCase(zlog, cfg.Intake, extractor, summarizer, decompressor)

	res, err := intakeUseCase.ProcessBatch(context.Background(), files)
	if err != nil {
		zlog.Fatalf("intake failed: %v", err)
	}

	out := os.Stdout
	if *outFile != "" {
		out, err = os.Create(*outFile)
		if err != nil {
			zlog.Fatalf("failed to create result file: %v", err)
		}
		defer func() {
			if err := out.Close(); err != nil {
				zlog.Error().Err(err).Msg("failed to close result file")
			}
		}()
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(res)
	case "html":
		err = renderHTML(out, summarizer, res, files)
	case "text":
		err = renderText(out, res)
	default:
		err = fmt.Errorf("unknown format %q", *format)
	}
	if err != nil {
		zlog.Fatalf("failed to render result: %v", err)
	}
}

func readInput(path string) ([]*entity.RawFile, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !fi.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return []*entity.RawFile{{Name: filepath.Base(path), Data: data}}, nil
	}

	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	files := make([]*entity.RawFile, 0, len(dirEntries))
	for _, e := range dirEntries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(path, e.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, &entity.RawFile{Name: e.Name(), Data: data})
	}

	return files, nil
}

// renderHTML charts the first parsed capture of the batch
func renderHTML(out *os.File, summarizer *capture.Summarizer, res *entity.IntakeResult, files []*entity.RawFile) error {
	if len(res.Captures) == 0 {
		return fmt.Errorf("no parseable capture in input")
	}

	meta := res.Captures[0]
	for _, f := range files {
		if f.Name != meta.Filename {
			continue
		}
		profile, err := summarizer.Profile(f.Data)
		if err != nil {
			return err
		}
		return report.Render(out, meta, profile)
	}

	return fmt.Errorf("capture %s not found among input files", meta.Filename)
}

func renderText(out *os.File, res *entity.IntakeResult) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Batch %s\n", res.BatchID)
	fmt.Fprintf(&b, "Files: %d total, %d logs, %d captures, %d archives, %d skipped\n\n",
		res.Totals.Total, res.Totals.LogFiles, res.Totals.Captures, res.Totals.Archives, res.Totals.Skipped)

	for _, e := range res.Evidence {
		fmt.Fprintf(&b, "evidence: %s (%s, %s priority)\n", e.Filename, e.Category, e.Priority)
	}
	for _, s := range res.Summaries {
		fmt.Fprintf(&b, "\n%s", s)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}

	_, err := out.WriteString(b.String())
	return err
}

// Package main Magpie intake service main package
package main

import (
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/hollowlog/magpie/adapter/analyzer"
	"github.com/hollowlog/magpie/adapter/archive"
	"github.com/hollowlog/magpie/adapter/capture"
	rest "github.com/hollowlog/magpie/adapter/http"
	"github.com/hollowlog/magpie/business/entity"
	"github.com/hollowlog/magpie/business/usecase"
	"github.com/hollowlog/magpie/pkg/automaxprocs"
	"github.com/hollowlog/magpie/pkg/compression"
	"github.com/hollowlog/magpie/pkg/config"
	"github.com/hollowlog/magpie/pkg/logger"
	"github.com/hollowlog/magpie/pkg/profiler"
)

var (
	cfg        = &entity.ServerConfig{}
	cfgHandler *config.Config
	zlog       *logger.Logger

	extractorAdapter  *archive.Extractor
	summarizerAdapter *capture.Summarizer
	analyzerAdapter   *analyzer.Client
	decompressor      *compression.Decompressor

	intakeUseCase   *usecase.IntakeUseCase
	analysisUseCase *usecase.AnalysisUseCase
)

func init() {
	var err error
	if cfgHandler, err = config.New(entity.DefaultServerConfigFileName, "", cfg); err != nil {
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
		FileName:          cfg.Logger.FileName,
	})

	if cfg.Runtime.GoMaxProcs != 0 {
		runtime.GOMAXPROCS(cfg.Runtime.GoMaxProcs)
	} else {
		automaxprocs.Init(zlog)
	}
}

func main() {
	if err := cfg.Validate(); err != nil {
		zlog.Fatalf("invalid configuration: %v", err)
	}

	initAdapters()
	initUseCases()

	if err := cfgHandler.AddObserver(onConfigChanged); err != nil {
		zlog.Fatalf("failed to create config file observer: %v", err)
	}

	if *cfg.Profiler.Enabled {
		profiler.Start(&profiler.Config{
			Host: cfg.Profiler.Host,
			Port: cfg.Profiler.Port,
		}, zlog)
	}

	initRestServer()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

func initAdapters() {
	decompressor = compression.New(&compression.Config{
		MaxDecodedSize: cfg.Archive.MaxDecodedSize,
	})

	extractorAdapter = archive.New(&archive.Config{
		MaxEntries:   cfg.Archive.MaxEntries,
		MaxEntrySize: cfg.Archive.MaxEntrySize,
	}, decompressor)

	summarizerAdapter = capture.NewSummarizer(&capture.Config{
		MaxRenderedPackets: cfg.Intake.MaxRenderedPackets,
	})

	analyzerAdapter = analyzer.New(&analyzer.Config{
		Endpoints: cfg.Analyzer.Endpoints,
		Timeout:   time.Duration(cfg.Analyzer.Timeout) * time.Second,
	}, zlog)
}

func initUseCases() {
	intakeUseCase = usecase.NewIntakeUseCase(zlog, cfg.Intake, extractorAdapter, summarizerAdapter, decompressor)
	analysisUseCase = usecase.NewAnalysisUseCase(zlog, analyzerAdapter)
}

// onConfigChanged re-validates the reloaded file and swaps the mutable
// runtime values; an invalid reload keeps the previous configuration
func onConfigChanged(data interface{}) {
	newCfg, ok := data.(*entity.ServerConfig)
	if !ok {
		return
	}
	if err := newCfg.Validate(); err != nil {
		zlog.Error().Err(err).Msg("invalid configuration after reload, keeping previous")
		return
	}

	intakeUseCase.SetConfig(newCfg.Intake)
	analyzerAdapter.SetEndpoints(newCfg.Analyzer.Endpoints)

	zlog.Info().Msg("configuration reloaded")
}

func initRestServer() {
	srv, err := rest.New(&rest.Config{
		Host:          cfg.Rest.Host,
		Port:          cfg.Rest.Port,
		APIKey:        cfg.Rest.APIKey,
		MaxUploadSize: cfg.Rest.MaxUploadSize,
	}, zlog, intakeUseCase, analysisUseCase)
	if err != nil {
		zlog.Fatalf("failed to start HTTP server: %v", err)
	}
	srv.Start()
}

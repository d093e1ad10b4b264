// Package rest HTTP upload boundary of the intake pipeline.
package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/hollowlog/magpie/business/entity"
	"github.com/hollowlog/magpie/pkg/logger"
	"github.com/hollowlog/magpie/pkg/structs"
)

type Server struct {
	cfg             *Config
	log             *logger.Logger
	intakeUseCase   IntakeUseCase
	analysisUseCase AnalysisUseCase
	router          *gin.Engine
}

type Config struct {
	Host          string
	Port          int
	APIKey        string
	MaxUploadSize int64
}

type IntakeUseCase interface {
	ProcessBatch(ctx context.Context, files []*entity.RawFile) (*entity.IntakeResult, error)
}

type AnalysisUseCase interface {
	Analyze(ctx context.Context, res *entity.IntakeResult) (*entity.AnalysisReport, []string)
}

type diagnoseResponse struct {
	BatchID        string                    `json:"batchId"`
	FilesProcessed entity.FileTotals         `json:"filesProcessed"`
	Evidence       []*entity.LogFileEntry    `json:"evidence"`
	Captures       []*entity.CaptureMetadata `json:"captures"`
	Summaries      []string                  `json:"summaries,omitempty"`
	Analysis       *entity.AnalysisReport    `json:"analysis"`
	Warnings       []string                  `json:"warnings,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(cfg *Config, log *logger.Logger, intakeUseCase IntakeUseCase, analysisUseCase AnalysisUseCase) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:             cfg,
		log:             log,
		intakeUseCase:   intakeUseCase,
		analysisUseCase: analysisUseCase,
		router:          gin.Default(),
	}

	return s, s.init()
}

func (s *Server) init() error {
	s.router.MaxMultipartMemory = s.cfg.MaxUploadSize

	api := s.router.Group("/api/v1")
	if s.cfg.APIKey != "" {
		api.Use(s.authMiddleware)
	}
	api.POST("/diagnose", s.handlerDiagnose)
	api.GET("/health", s.handlerHealth)

	return nil
}

func (s *Server) Start() {
	go func() {
		s.log.Info().
			Str("host", s.cfg.Host).
			Int("port", s.cfg.Port).
			Msg("starting HTTP server")

		err := s.router.Run(fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
		if err != nil {
			s.log.Fatalf("failed to start HTTP server: %v", err)
		}
	}()
}

// Router exposes the gin engine for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) authMiddleware(ctx *gin.Context) {
	if ctx.GetHeader("Authorization") != "Bearer "+s.cfg.APIKey {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	ctx.Next()
}

func (s *Server) handlerDiagnose(ctx *gin.Context) {
	form, err := ctx.MultipartForm()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse{Error: "malformed multipart body: " + err.Error()})
		return
	}

	files, err := s.readFiles(form)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	res, err := s.intakeUseCase.ProcessBatch(ctx.Request.Context(), files)
	if err != nil {
		if errors.Is(err, entity.ErrNoUsableFiles) {
			ctx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		ctx.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	report, warnings := s.analysisUseCase.Analyze(ctx.Request.Context(), res)

	ctx.JSON(http.StatusOK, &diagnoseResponse{
		BatchID:        res.BatchID,
		FilesProcessed: res.Totals,
		Evidence:       res.Evidence,
		Captures:       res.Captures,
		Summaries:      res.Summaries,
		Analysis:       report,
		Warnings:       append(res.Warnings, warnings...),
	})
}

func (s *Server) handlerHealth(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// readFiles collects every uploaded file regardless of its form field
// name, in a deterministic field order
func (s *Server) readFiles(form *multipart.Form) ([]*entity.RawFile, error) {
	fields := structs.Keys(form.File)
	sort.Strings(fields)

	var files []*entity.RawFile
	for _, field := range fields {
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
			}
			data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadSize))
			_ = f.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
			}
			files = append(files, &entity.RawFile{Name: fh.Filename, Data: data})
		}
	}

	if len(files) == 0 {
		return nil, errors.New("no files in upload")
	}

	return files, nil
}

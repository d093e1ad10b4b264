package usecase

import (
	"context"

	"github.com/hollowlog/magpie/business/entity"
	"github.com/hollowlog/magpie/pkg/compression"
)

// ArchiveExtractor unpacks compressed containers into named byte blobs
type ArchiveExtractor interface {
	IsArchive(name string, data []byte) bool
	Extract(data []byte) (map[string][]byte, error)
}

// CaptureSummarizer parses one capture buffer into aggregate metadata
// and a bounded human-readable summary
type CaptureSummarizer interface {
	Summarize(filename string, buf []byte) (*entity.CaptureMetadata, string, error)
}

// Decompressor inflates single-file compressed logs
type Decompressor interface {
	Decompress(data []byte) ([]byte, compression.Encoding, error)
}

// AnalyzerClient calls the external analysis collaborator
type AnalyzerClient interface {
	Analyze(ctx context.Context, req *entity.AnalysisRequest) (string, error)
}

// Package usecase provides business logic.
package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hollowlog/magpie/business/entity"
	"github.com/hollowlog/magpie/pkg/compression"
	"github.com/hollowlog/magpie/pkg/logger"
	"github.com/hollowlog/magpie/pkg/structs"
)

const (
	truncationMarker = "... (truncated)"

	// archives extracted from archives are not descended into
	maxArchiveDepth = 1
)

// IntakeUseCase turns one uploaded batch of diagnostic artifacts into
// a normalized, prioritized evidence bundle
type IntakeUseCase struct {
	log        *logger.Logger
	cfg        *entity.IntakeConfig
	extractor  ArchiveExtractor
	summarizer CaptureSummarizer
	cmp        Decompressor
}

// NewIntakeUseCase creates a new IntakeUseCase
func NewIntakeUseCase(log *logger.Logger, cfg *entity.IntakeConfig,
	extractor ArchiveExtractor, summarizer CaptureSummarizer, cmp Decompressor) *IntakeUseCase {
	return &IntakeUseCase{
		log:        log.Duplicate(log.With().Str("layer", "ucintake").Logger()),
		cfg:        cfg,
		extractor:  extractor,
		summarizer: summarizer,
		cmp:        cmp,
	}
}

// SetConfig swaps the selection and truncation bounds on config reload
func (uc *IntakeUseCase) SetConfig(cfg *entity.IntakeConfig) {
	uc.cfg = cfg
}

// ProcessBatch processes one uploaded file set start to finish. Failures
// on individual files degrade to warnings; only an empty usable set is
// fatal for the whole request.
func (uc *IntakeUseCase) ProcessBatch(ctx context.Context, files []*entity.RawFile) (*entity.IntakeResult, error) {
	res := &entity.IntakeResult{
		BatchID: uuid.New().String(),
	}

	logs := make([]*entity.LogFileEntry, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		uc.processFile(res, &logs, f, 0)
	}

	if res.Totals.LogFiles == 0 && res.Totals.Captures == 0 {
		return nil, entity.ErrNoUsableFiles
	}

	uc.selectEvidence(res, logs)

	uc.log.Info().
		Str("batch", res.BatchID).
		Int("total", res.Totals.Total).
		Int("logs", res.Totals.LogFiles).
		Int("captures", res.Totals.Captures).
		Int("evidence", len(res.Evidence)).
		Msg("batch processed")

	return res, nil
}

func (uc *IntakeUseCase) processFile(res *entity.IntakeResult, logs *[]*entity.LogFileEntry, f *entity.RawFile, depth int) {
	res.Totals.Total++

	if uc.extractor.IsArchive(f.Name, f.Data) {
		uc.processArchive(res, logs, f, depth)
		return
	}

	if isCapture(f.Name, f.Data) {
		uc.processCapture(res, f)
		return
	}

	data := f.Data
	name := f.Name

	// single-file compressed log, inflated and re-examined once
	if uc.cmp != nil {
		inflated, enc, err := uc.cmp.Decompress(data)
		if err != nil {
			uc.warn(res, "failed to decompress %s: %v", f.Name, err)
			res.Totals.Skipped++
			return
		}
		if enc != compression.EncodingNone {
			data = inflated
			name = strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".zst"), ".lz4")
			if isCapture(name, data) {
				uc.processCapture(res, &entity.RawFile{Name: name, Data: data})
				return
			}
		}
	}

	if !utf8.Valid(data) {
		uc.warn(res, "skipping %s: %v", f.Name, entity.ErrNotText)
		res.Totals.Skipped++
		return
	}

	category, priority := entity.Classify(name)
	content := string(data)

	entry := &entity.LogFileEntry{
		Filename: name,
		Content:  content,
		Category: category,
		Priority: priority,
		KeyInfo:  uc.extractKeyInfo(name, category, content),
	}

	res.Totals.LogFiles++
	*logs = append(*logs, entry)
}

func (uc *IntakeUseCase) processArchive(res *entity.IntakeResult, logs *[]*entity.LogFileEntry, f *entity.RawFile, depth int) {
	if depth >= maxArchiveDepth {
		uc.warn(res, "skipping nested archive %s: %v", f.Name, entity.ErrArchiveTooDeep)
		res.Totals.Skipped++
		return
	}

	entries, err := uc.extractor.Extract(f.Data)
	if err != nil {
		uc.warn(res, "%v", err)
		res.Totals.Skipped++
		return
	}

	res.Totals.Archives++

	// deterministic order for selection in encounter order
	names := structs.Keys(entries)
	sort.Strings(names)

	for _, name := range names {
		uc.processFile(res, logs, &entity.RawFile{Name: name, Data: entries[name]}, depth+1)
	}
}

func (uc *IntakeUseCase) processCapture(res *entity.IntakeResult, f *entity.RawFile) {
	meta, summary, err := uc.summarizer.Summarize(f.Name, f.Data)
	if err != nil {
		uc.warn(res, "failed to parse capture %s: %v", f.Name, err)
		res.Totals.Skipped++
		return
	}

	res.Totals.Captures++
	res.Captures = append(res.Captures, meta)
	res.Summaries = append(res.Summaries, summary)
}

// selectEvidence applies the priority-based selection limits: excess
// entries stay in the totals but leave the evidence set
func (uc *IntakeUseCase) selectEvidence(res *entity.IntakeResult, logs []*entity.LogFileEntry) {
	var high, medium int

	for _, entry := range logs {
		switch entry.Priority {
		case entity.PriorityHigh:
			if high >= uc.cfg.MaxHighPriorityFiles {
				continue
			}
			high++
		case entity.PriorityMedium:
			if medium >= uc.cfg.MaxMediumPriorityFiles {
				continue
			}
			medium++
		default:
			continue
		}

		uc.truncate(res, entry)
		res.Evidence = append(res.Evidence, entry)
	}

	if excluded := res.Totals.LogFiles - len(res.Evidence); excluded > 0 {
		uc.warn(res, "%d log files excluded from the evidence set by priority limits", excluded)
	}
}

func (uc *IntakeUseCase) truncate(res *entity.IntakeResult, entry *entity.LogFileEntry) {
	if len(entry.Content) <= uc.cfg.MaxContentLength {
		return
	}

	// never cut inside a multi-byte rune
	cut := uc.cfg.MaxContentLength
	for cut > 0 && !utf8.RuneStart(entry.Content[cut]) {
		cut--
	}

	entry.Content = entry.Content[:cut] + truncationMarker
	entry.Truncated = true
	uc.warn(res, "%s truncated to %d characters", entry.Filename, cut)
}

func (uc *IntakeUseCase) warn(res *entity.IntakeResult, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	uc.log.Warn().Msg(msg)
	res.Warnings = append(res.Warnings, msg)
}

var captureExtensions = []string{".pcap", ".pcapng", ".cap"}

func isCapture(name string, data []byte) bool {
	if len(data) >= 4 {
		switch {
		case data[0] == 0xA1 && data[1] == 0xB2 && data[2] == 0xC3 && data[3] == 0xD4,
			data[0] == 0xD4 && data[1] == 0xC3 && data[2] == 0xB2 && data[3] == 0xA1,
			data[0] == 0x0A && data[1] == 0x0D && data[2] == 0x0D && data[3] == 0x0A:
			return true
		}
	}

	lower := strings.ToLower(name)
	for _, ext := range captureExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

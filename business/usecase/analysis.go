package usecase

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/hollowlog/magpie/business/entity"
	"github.com/hollowlog/magpie/pkg/logger"
)

// AnalysisUseCase hands the evidence bundle to the external analysis
// collaborator and decodes its response, degrading to a rule-based
// scan whenever the call or the decoding fails
type AnalysisUseCase struct {
	log      *logger.Logger
	analyzer AnalyzerClient
}

// NewAnalysisUseCase creates a new AnalysisUseCase
func NewAnalysisUseCase(log *logger.Logger, analyzer AnalyzerClient) *AnalysisUseCase {
	return &AnalysisUseCase{
		log:      log.Duplicate(log.With().Str("layer", "ucanalysis").Logger()),
		analyzer: analyzer,
	}
}

// Analyze produces the analysis report for one intake result. Never
// fails: upstream errors surface as a warning plus the fallback report.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, res *entity.IntakeResult) (*entity.AnalysisReport, []string) {
	req := &entity.AnalysisRequest{
		Evidence: res.Evidence,
		Totals:   res.Totals,
	}
	if len(res.Captures) > 0 {
		req.Capture = res.Captures[0]
	}

	text, err := uc.analyzer.Analyze(ctx, req)
	if err != nil {
		uc.log.Warn().Err(err).Msg("analyzer call failed, using rule-based fallback")
		return uc.fallbackScan(res.Evidence), []string{"analysis degraded: " + err.Error()}
	}

	report, err := decodeReport(text)
	if err != nil {
		uc.log.Warn().Err(err).Msg("analyzer response not decodable, using rule-based fallback")
		return uc.fallbackScan(res.Evidence), []string{"analysis degraded: " + err.Error()}
	}

	report.Source = entity.AnalysisSourceModel
	return report, nil
}

// decodeReport extracts the first top-level JSON object embedded in
// the free-form response text and weakly decodes it
func decodeReport(text string) (*entity.AnalysisReport, error) {
	span, ok := extractJSONObject(text)
	if !ok {
		return nil, entity.ErrNoEmbeddedJSON
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return nil, errors.Wrap(err, "embedded JSON object")
	}

	report := &entity.AnalysisReport{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           report,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "analysis report schema")
	}

	return report, nil
}

// extractJSONObject returns the first balanced top-level {...} span,
// skipping braces inside JSON strings
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	var (
		depth    int
		inString bool
		escaped  bool
	)
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

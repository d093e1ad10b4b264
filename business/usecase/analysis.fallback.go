package usecase

import (
	"strings"

	"github.com/hollowlog/magpie/business/entity"
)

type fallbackRule struct {
	class          string
	phrases        []string
	severity       string
	recommendation string
}

var fallbackRules = []fallbackRule{
	{
		class: "connection failure",
		phrases: []string{
			"connection refused", "connection reset", "connection timed out",
			"unable to connect", "tunnel down",
		},
		severity:       "high",
		recommendation: "Verify the remote endpoint is reachable and that no firewall drops the connection.",
	},
	{
		class: "dns failure",
		phrases: []string{
			"could not resolve", "nxdomain", "dns timeout", "servfail",
		},
		severity:       "high",
		recommendation: "Check the configured DNS resolvers and the resolv configuration.",
	},
	{
		class: "certificate problem",
		phrases: []string{
			"certificate verify failed", "certificate expired", "x509:", "tls handshake",
		},
		severity:       "medium",
		recommendation: "Inspect the certificate chain and the system clock on both peers.",
	},
	{
		class: "authentication failure",
		phrases: []string{
			"authentication failed", "401 unauthorized", "invalid credentials",
		},
		severity:       "medium",
		recommendation: "Confirm the credentials and the authentication backend availability.",
	},
}

// fallbackScan derives a rule-based report from the evidence set when
// the analysis collaborator is unavailable or undecodable
func (uc *AnalysisUseCase) fallbackScan(evidence []*entity.LogFileEntry) *entity.AnalysisReport {
	report := &entity.AnalysisReport{
		Source:   entity.AnalysisSourceFallback,
		Severity: "low",
	}

	recommended := make(map[string]struct{}, len(fallbackRules))

	for _, entry := range evidence {
		for _, line := range strings.Split(entry.Content, "\n") {
			lower := strings.ToLower(line)
			for i := range fallbackRules {
				rule := &fallbackRules[i]
				if !matchesAny(lower, rule.phrases) {
					continue
				}

				report.Issues = append(report.Issues, &entity.Issue{
					Summary:  rule.class + " in " + entry.Filename,
					Evidence: strings.TrimSpace(line),
					Severity: rule.severity,
				})
				if rule.severity == "high" {
					report.Severity = "high"
				} else if report.Severity == "low" {
					report.Severity = "medium"
				}
				if _, ok := recommended[rule.class]; !ok {
					recommended[rule.class] = struct{}{}
					report.Recommendations = append(report.Recommendations, rule.recommendation)
				}
			}
		}
	}

	uc.log.Debug().Int("issues", len(report.Issues)).Msg("rule-based scan complete")

	return report
}

func matchesAny(line string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(line, p) {
			return true
		}
	}
	return false
}

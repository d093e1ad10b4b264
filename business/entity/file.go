package entity

import (
	"strings"
)

// RawFile one named byte blob produced by upload handling or archive
// extraction, owned by the intake use case for the duration of one request
type RawFile struct {
	Name string
	Data []byte
}

type FileCategory string

const (
	CategoryConnection  FileCategory = "connection"
	CategoryDNS         FileCategory = "dns"
	CategoryNetwork     FileCategory = "network"
	CategoryConfig      FileCategory = "config"
	CategorySystem      FileCategory = "system"
	CategoryPerformance FileCategory = "performance"
	CategorySecurity    FileCategory = "security"
	CategoryCapture     FileCategory = "capture"
	CategoryOther       FileCategory = "other"
)

type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	}
	return "low"
}

type categoryRule struct {
	category FileCategory
	patterns []string
	priority Priority
}

// Rule order is observable behavior: overlapping patterns resolve to the
// first matching category. Do not reorder.
var categoryRules = []categoryRule{
	{CategoryConnection, []string{"connection", "conn", "tunnel", "vpn", "session"}, PriorityHigh},
	{CategoryDNS, []string{"dns", "resolv", "lookup"}, PriorityHigh},
	{CategoryNetwork, []string{"network", "netstat", "interface", "route", "proxy", "firewall"}, PriorityMedium},
	{CategoryConfig, []string{"config", "conf", "settings", "policy"}, PriorityMedium},
	{CategorySystem, []string{"system", "sys", "daemon", "service", "host", "boot"}, PriorityMedium},
	{CategoryPerformance, []string{"performance", "perf", "latency", "bandwidth", "speed"}, PriorityMedium},
	{CategorySecurity, []string{"security", "auth", "cert", "tls", "ssl"}, PriorityMedium},
	{CategoryCapture, []string{".pcap", ".pcapng", ".cap", "capture", "trace"}, PriorityMedium},
}

// Classify maps a filename to its category and priority. Pure and total:
// every name maps to exactly one result, (other, low) when nothing matches.
func Classify(filename string) (FileCategory, Priority) {
	name := strings.ToLower(filename)
	for i := range categoryRules {
		for _, p := range categoryRules[i].patterns {
			if strings.Contains(name, p) {
				return categoryRules[i].category, categoryRules[i].priority
			}
		}
	}
	return CategoryOther, PriorityLow
}

// LogFileEntry one classified non-capture text file
type LogFileEntry struct {
	Filename  string            `json:"filename"`
	Content   string            `json:"content"`
	Category  FileCategory      `json:"category"`
	Priority  Priority          `json:"-"`
	KeyInfo   map[string]string `json:"keyInfo,omitempty"`
	Truncated bool              `json:"truncated,omitempty"`
}

// FileTotals per-batch processing counters
type FileTotals struct {
	Total    int `json:"total"`
	LogFiles int `json:"logFiles"`
	Captures int `json:"captures"`
	Archives int `json:"archives"`
	Skipped  int `json:"skipped"`
}

// IntakeResult the normalized evidence bundle for one uploaded batch
type IntakeResult struct {
	BatchID   string             `json:"batchId"`
	Totals    FileTotals         `json:"totals"`
	Evidence  []*LogFileEntry    `json:"evidence"`
	Captures  []*CaptureMetadata `json:"captures"`
	Summaries []string           `json:"summaries,omitempty"`
	Warnings  []string           `json:"warnings,omitempty"`
}

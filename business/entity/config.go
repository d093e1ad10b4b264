// Package entity provides entities for business logic.
package entity

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	DefaultServerConfigFileName = "magpie-server.yaml"
)

// ServerConfig server configuration
type ServerConfig struct {
	Logger   *LoggerConfig   `yaml:"Logger"`
	Runtime  *RuntimeConfig  `yaml:"Runtime"`
	Intake   *IntakeConfig   `yaml:"Intake"`
	Archive  *ArchiveConfig  `yaml:"Archive"`
	Analyzer *AnalyzerConfig `yaml:"Analyzer"`
	Profiler *ProfilerConfig `yaml:"Profiler"`
	Rest     *RestConfig     `yaml:"Rest"`
}

// LoggerConfig logger settings
type LoggerConfig struct {
	Level             string `yaml:"level" default:"info"`
	TimeFieldFormat   string `yaml:"timeFieldFormat" default:"2006-01-02T15:04:05.000000"`
	PrettyPrint       *bool  `yaml:"prettyPrint" default:"false"`
	DisableSampling   *bool  `yaml:"disableSampling" default:"true"`
	RedirectStdLogger *bool  `yaml:"redirectStdLogger" default:"true"`
	ErrorStack        *bool  `yaml:"errorStack" default:"true"`
	ShowCaller        *bool  `yaml:"showCaller" default:"false"`
	FileName          string `yaml:"fileName,omitempty" default:""`
}

// RuntimeConfig runtime settings
type RuntimeConfig struct {
	GoMaxProcs int `yaml:"goMaxProcs" default:"0"`
}

// IntakeConfig evidence selection and truncation bounds
type IntakeConfig struct {
	MaxHighPriorityFiles   int `yaml:"maxHighPriorityFiles" default:"10"`
	MaxMediumPriorityFiles int `yaml:"maxMediumPriorityFiles" default:"5"`
	MaxContentLength       int `yaml:"maxContentLength" default:"3000"`
	MaxRenderedPackets     int `yaml:"maxRenderedPackets" default:"50"`
}

// ArchiveConfig archive extraction guards
type ArchiveConfig struct {
	MaxEntries     int   `yaml:"maxEntries" default:"256"`
	MaxEntrySize   int64 `yaml:"maxEntrySize" default:"33554432"`
	MaxDecodedSize int64 `yaml:"maxDecodedSize" default:"134217728"`
}

// AnalyzerConfig analysis collaborator configuration
type AnalyzerConfig struct {
	Endpoints []*AnalyzerEndpoint `yaml:"Endpoints"`
	Timeout   int                 `yaml:"timeout" default:"60"`
}

// AnalyzerEndpoint one inference backend in the fallback chain
type AnalyzerEndpoint struct {
	URL       string `yaml:"url"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"apiKey,omitempty" default:""`
	MaxTokens int    `yaml:"maxTokens" default:"2048"`
}

// ProfilerConfig pprof configuration
type ProfilerConfig struct {
	Enabled *bool  `yaml:"enabled" default:"false"`
	Host    string `yaml:"host" default:"localhost"`
	Port    int    `yaml:"port" default:"8888"`
}

// RestConfig REST server configuration
type RestConfig struct {
	Host          string `yaml:"host" default:"localhost"`
	Port          int    `yaml:"port" default:"8877"`
	APIKey        string `yaml:"apiKey,omitempty" default:""`
	MaxUploadSize int64  `yaml:"maxUploadSize" default:"67108864"`
}

func (c *ServerConfig) Validate() error {
	if err := validation.ValidateStruct(c.Rest,
		validation.Field(&c.Rest.Host, validation.Required, is.Host),
		validation.Field(&c.Rest.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	); err != nil {
		return err
	}
	for _, ep := range c.Analyzer.Endpoints {
		if err := validation.ValidateStruct(ep,
			validation.Field(&ep.URL, validation.Required, is.URL),
			validation.Field(&ep.Model, validation.Required),
		); err != nil {
			return err
		}
	}
	return nil
}

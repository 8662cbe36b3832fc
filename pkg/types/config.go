package types

import "time"

// HTTPConfig holds shared HTTP settings used by every network-facing provider.
type HTTPConfig struct {
	// Timeout is the HTTP client timeout for a single request.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "medref/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// DefaultMedicalDomains is the curated allowlist that restricts semantic,
// keyword and grounded-answer search to medical sources.
var DefaultMedicalDomains = []string{
	"ncbi.nlm.nih.gov",
	"pubmed.ncbi.nlm.nih.gov",
	"uptodate.com",
	"nejm.org",
	"jamanetwork.com",
	"thelancet.com",
	"cochrane.org",
	"mayoclinic.org",
	"acponline.org",
}

// SearchConfig holds settings for aggregation and the search providers.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the per-provider result bound when a caller passes none (default 5).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// ProviderTimeout bounds each individual provider call (default 30s).
	ProviderTimeout time.Duration `json:"provider_timeout" yaml:"provider_timeout"`

	// MaxRetries is the number of HTTP 429 retries per request (default 2).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MedicalDomains restricts Exa, Tavily and Perplexity results.
	MedicalDomains []string `json:"medical_domains" yaml:"medical_domains"`

	// PerplexityModel is the default grounded-answer tier.
	PerplexityModel string `json:"perplexity_model" yaml:"perplexity_model"`

	PerplexityAPIKey string `json:"perplexity_api_key,omitempty" yaml:"perplexity_api_key,omitempty"`
	ExaAPIKey        string `json:"exa_api_key,omitempty" yaml:"exa_api_key,omitempty"`
	TavilyAPIKey     string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty"`

	// NCBIAPIKey raises the PubMed rate limit from 3 to 10 requests per second.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty"`

	// NCBIEmail is sent with E-utilities requests as the contact address.
	NCBIEmail string `json:"ncbi_email,omitempty" yaml:"ncbi_email,omitempty"`
}

// Credentials are a username/password pair for an authenticated content site.
type Credentials struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"-" yaml:"-"`
}

// Empty reports whether either half of the pair is missing.
func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// LogConfig selects the zap encoder and sink.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `json:"level" yaml:"level"`

	// Format is "console" or "json".
	Format string `json:"format" yaml:"format"`

	// Output is "console", "file" or "both".
	Output string `json:"output" yaml:"output"`

	// File is the log file path used when Output includes a file.
	File string `json:"file" yaml:"file"`

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	MaxBackups int `json:"max_backups" yaml:"max_backups"`
}

// ServerConfig holds settings for the HTTP transport.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// LibraryConfig holds settings for the citation library.
type LibraryConfig struct {
	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path"`

	// MaxResults is the default number of rows returned by queries (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// Config groups all medref settings.
type Config struct {
	Search  SearchConfig  `json:"search" yaml:"search"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Library LibraryConfig `json:"library" yaml:"library"`

	// Logins holds stored credentials per authenticated target.
	Logins map[string]Credentials `json:"-" yaml:"-"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/viper"

	"github.com/pdiddy/medref/internal/browse"
	"github.com/pdiddy/medref/internal/search"
	"github.com/pdiddy/medref/internal/secrets"
	"github.com/pdiddy/medref/internal/server"
	"github.com/pdiddy/medref/internal/session"
	"github.com/pdiddy/medref/pkg/types"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.timeout", "30s")
	v.SetDefault("search.user_agent", "medref/"+version)
	v.SetDefault("search.max_results", search.DefaultMaxResults)
	v.SetDefault("search.provider_timeout", search.DefaultTimeout.String())
	v.SetDefault("search.max_retries", 2)
	v.SetDefault("search.medical_domains", types.DefaultMedicalDomains)
	v.SetDefault("search.perplexity_model", string(search.ModelSonarPro))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file", "logs/medref.log")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)

	v.SetDefault("server.addr", server.DefaultAddr)

	v.SetDefault("library.path", "data/library.db")
	v.SetDefault("library.max_results", 20)
}

// secretKey names where one credential can come from: a config key, a
// file under .secrets/, then environment variables in order.
type secretKey struct {
	config string
	file   string
	envs   []string
}

var (
	perplexityKey = secretKey{"search.perplexity_api_key", "perplexity-api-key", []string{"PERPLEXITY_API_KEY", "VITE_PERPLEXITY_API_KEY"}}
	exaKey        = secretKey{"search.exa_api_key", "exa-api-key", []string{"EXA_API_KEY", "VITE_EXA_API_KEY"}}
	tavilyKey     = secretKey{"search.tavily_api_key", "tavily-api-key", []string{"TAVILY_API_KEY", "VITE_TAVILY_API_KEY"}}
	ncbiKey       = secretKey{"search.ncbi_api_key", "ncbi-api-key", []string{"NCBI_API_KEY"}}
	ncbiEmail     = secretKey{"search.ncbi_email", "ncbi-email", []string{"NCBI_EMAIL"}}
)

func (k secretKey) resolve(v *viper.Viper, loaded map[string]string) string {
	if s := v.GetString(k.config); s != "" {
		return s
	}
	return secrets.Lookup(loaded, k.file, k.envs...)
}

// loadConfig builds the configuration from v, with credentials resolved
// from v, the loaded .secrets/ files and the environment.
func loadConfig(v *viper.Viper, loaded map[string]string) types.Config {
	c := types.Config{
		Search: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   v.GetDuration("search.timeout"),
				UserAgent: v.GetString("search.user_agent"),
			},
			MaxResults:      v.GetInt("search.max_results"),
			ProviderTimeout: v.GetDuration("search.provider_timeout"),
			MaxRetries:      v.GetInt("search.max_retries"),
			MedicalDomains:  v.GetStringSlice("search.medical_domains"),
			PerplexityModel: v.GetString("search.perplexity_model"),

			PerplexityAPIKey: perplexityKey.resolve(v, loaded),
			ExaAPIKey:        exaKey.resolve(v, loaded),
			TavilyAPIKey:     tavilyKey.resolve(v, loaded),
			NCBIAPIKey:       ncbiKey.resolve(v, loaded),
			NCBIEmail:        ncbiEmail.resolve(v, loaded),
		},
		Log: types.LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Output:     v.GetString("log.output"),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
		},
		Server: types.ServerConfig{
			Addr: v.GetString("server.addr"),
		},
		Library: types.LibraryConfig{
			Path:       v.GetString("library.path"),
			MaxResults: v.GetInt("library.max_results"),
		},
		Logins: map[string]types.Credentials{},
	}

	for _, l := range []struct {
		target session.Target
		env    string
	}{
		{session.TargetUpToDate, "UPTODATE"},
		{session.TargetMKSAP, "MKSAP"},
	} {
		creds := types.Credentials{
			Username: secrets.Lookup(loaded, string(l.target)+"-username", l.env+"_USERNAME"),
			Password: secrets.Lookup(loaded, string(l.target)+"-password", l.env+"_PASSWORD"),
		}
		if !creds.Empty() {
			c.Logins[string(l.target)] = creds
		}
	}
	return c
}

// app holds the components shared by the search and serve commands.
type app struct {
	pool       *session.Pool
	aggregator *search.Aggregator
}

func newApp(c types.Config) *app {
	newBrowser := func() browse.Browser {
		return browse.NewHTTPBrowser(c.Search.Timeout, c.Search.UserAgent)
	}
	pool := session.NewPool(logger, session.DefaultSites(newBrowser)...)
	providers := search.NewProviders(c.Search, pool, logger)
	return &app{
		pool:       pool,
		aggregator: search.NewAggregator(c.Search, logger, providers...),
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medref/internal/library"
	"github.com/pdiddy/medref/internal/search"
	"github.com/pdiddy/medref/internal/session"
	"github.com/pdiddy/medref/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search every configured provider for a clinical question",
	Long: `Search sends the query to PubMed and to every provider that is ready:
Perplexity, Exa and Tavily when their API keys are configured, UpToDate and
MKSAP 19 when signed in with --login. Results are merged into one citation
list; providers that fail are listed as warnings.

Use --provider to query a single source and see its error directly.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	providerName, _ := cmd.Flags().GetString("provider")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	model, _ := cmd.Flags().GetString("model")
	general, _ := cmd.Flags().GetBool("general")
	logins, _ := cmd.Flags().GetStringSlice("login")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")
	save, _ := cmd.Flags().GetBool("save")

	if jsonOutput {
		format = "json"
	}
	if model != "" && !search.PerplexityModel(model).Valid() {
		fmt.Fprintf(os.Stderr, "warning: unknown model %q, using %s\n", model, search.ModelSonarPro)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a := newApp(cfg)
	if err := a.login(ctx, logins); err != nil {
		return err
	}

	opts := search.Options{Model: search.PerplexityModel(model), General: general}

	var resp types.AggregateResponse
	if providerName != "" {
		name := types.ProviderName(providerName)
		if !name.Valid() {
			return fmt.Errorf("unknown provider %q: use one of %v", providerName, types.AllProviders)
		}
		res, err := a.aggregator.SearchOne(ctx, name, query, maxResults, opts)
		if err != nil {
			return err
		}
		resp = search.SingleResponse(res)
	} else {
		resp = a.aggregator.Aggregate(ctx, query, maxResults, opts)
	}

	if outPath != "" {
		req := search.RequestParams{
			Query:      query,
			Provider:   types.ProviderName(providerName),
			MaxResults: maxResults,
			Model:      search.PerplexityModel(model),
			General:    general,
		}
		if err := search.WriteResponseFile(outPath, req, resp); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved response to %s\n", outPath)
	}

	if save {
		lib, err := library.Open(cfg.Library)
		if err != nil {
			return err
		}
		defer lib.Close()
		id, err := lib.Save(ctx, resp)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Filed in library as %s\n", id)
	}

	switch format {
	case "json":
		return search.FormatJSON(resp, os.Stdout)
	case "csl":
		return search.FormatCSL(resp.AllCitations, os.Stdout)
	case "table", "":
		search.FormatTable(resp, os.Stdout)
		return nil
	default:
		return fmt.Errorf("unsupported format %q: use table, json or csl", format)
	}
}

// login signs in to each named target with its stored credentials.
func (a *app) login(ctx context.Context, targets []string) error {
	for _, name := range targets {
		target, err := session.ParseTarget(name)
		if err != nil {
			return err
		}
		creds, ok := cfg.Logins[string(target)]
		if !ok {
			return fmt.Errorf("no credentials for %s: set %s-username and %s-password in .secrets/", target, target, target)
		}
		if !a.pool.Login(ctx, target, creds) {
			fmt.Fprintf(os.Stderr, "warning: login to %s failed\n", target)
		}
	}
	return nil
}

func init() {
	searchCmd.Flags().String("provider", "", "query a single provider: pubmed, perplexity, exa, tavily, uptodate, mksap")
	searchCmd.Flags().Int("max-results", 0, "results per provider (0 = configured default)")
	searchCmd.Flags().String("model", "", "Perplexity tier: sonar-pro, sonar-reasoning-pro, sonar-deep-research")
	searchCmd.Flags().Bool("general", false, "drop the medical focus (general prompt, no domain filter)")
	searchCmd.Flags().StringSlice("login", nil, "sign in before searching: uptodate, mksap")
	searchCmd.Flags().Bool("json", false, "output the response as JSON")
	searchCmd.Flags().String("format", "table", "output format: table, json or csl")
	searchCmd.Flags().String("out", "", "write the request and response to a YAML file")
	searchCmd.Flags().Bool("save", false, "file the response in the citation library")

	rootCmd.AddCommand(searchCmd)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medref/internal/library"
	"github.com/pdiddy/medref/internal/search"
	"github.com/pdiddy/medref/pkg/types"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Find, list and export saved citations",
	Long: `Library manages the local SQLite citation library filled by
"medref search --save" and the server's save option. Use subcommands to
search saved citations, list recent searches, file a saved response, or
export citations for a reference manager.`,
}

// --- find subcommand ---

var libraryFindCmd = &cobra.Command{
	Use:   "find [query]",
	Short: "Full-text search over saved citations",
	Long: `Find matches the query against citation titles, snippets and sources
using FTS5 syntax. Without a query it lists saved citations, newest first.`,
	RunE: runLibraryFind,
}

func runLibraryFind(cmd *cobra.Command, args []string) error {
	lib, err := library.Open(cfg.Library)
	if err != nil {
		return err
	}
	defer lib.Close()

	entries, err := lib.Find(context.Background(), queryOptsFromFlags(cmd, args))
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatFindOutput(entries, jsonOutput, os.Stdout)
}

func formatFindOutput(entries []library.Entry, jsonOutput bool, w io.Writer) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, search.NoResults)
		return nil
	}

	fmt.Fprintf(w, "%-16s  %-50s  %-20s  %-4s  %s\n", "ID", "Title", "Source", "Year", "Query")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, e := range entries {
		year := ""
		if e.Year != nil {
			year = fmt.Sprintf("%d", *e.Year)
		}
		fmt.Fprintf(w, "%-16s  %-50s  %-20s  %-4s  %s\n",
			clip(e.ID, 16), clip(e.Title, 50), clip(e.Source, 20), year, clip(e.SearchQuery, 30))
	}
	fmt.Fprintf(w, "\n%d citations\n", len(entries))
	return nil
}

// --- recent subcommand ---

var libraryRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently saved searches",
	RunE:  runLibraryRecent,
}

func runLibraryRecent(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	lib, err := library.Open(cfg.Library)
	if err != nil {
		return err
	}
	defer lib.Close()

	searches, err := lib.Recent(context.Background(), limit)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return search.FormatJSON(searches, os.Stdout)
	}
	if len(searches) == 0 {
		fmt.Println("No saved searches.")
		return nil
	}
	for _, s := range searches {
		fmt.Printf("%s  %s  %-40s  %d citations, %d/%d providers\n",
			s.ID, s.SavedAt.Format("2006-01-02 15:04"), clip(s.Query, 40),
			s.Citations, len(s.Providers)-len(s.Errors), len(s.Providers))
	}
	return nil
}

// --- add subcommand ---

var libraryAddCmd = &cobra.Command{
	Use:   "add <response.yaml>...",
	Short: "File saved response files in the library",
	Long: `Add reads response files written by "medref search --out" and files
each one in the library without re-querying the providers.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLibraryAdd,
}

func runLibraryAdd(cmd *cobra.Command, args []string) error {
	lib, err := library.Open(cfg.Library)
	if err != nil {
		return err
	}
	defer lib.Close()

	for _, path := range args {
		rf, err := search.ReadResponseFile(path)
		if err != nil {
			return err
		}
		id, err := lib.Save(context.Background(), rf.Response)
		if err != nil {
			return fmt.Errorf("filing %s: %w", path, err)
		}
		fmt.Printf("%s  %s\n", id, path)
	}
	return nil
}

// --- export subcommand ---

var libraryExportCmd = &cobra.Command{
	Use:   "export [query]",
	Short: "Export saved citations as YAML, JSON or CSL",
	Long: `Export writes saved citations to stdout, or to --out. The csl format
emits CSL YAML that reference managers import directly. Supports the same
filters as find.`,
	RunE: runLibraryExport,
}

func runLibraryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")

	lib, err := library.Open(cfg.Library)
	if err != nil {
		return err
	}
	defer lib.Close()

	var w io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outPath, err)
		}
		defer f.Close()
		w = f
	}

	if err := lib.Export(context.Background(), queryOptsFromFlags(cmd, args), format, w); err != nil {
		return err
	}
	if outPath != "" {
		fmt.Fprintf(os.Stderr, "Exported to %s\n", outPath)
	}
	return nil
}

// --- shared helpers ---

func queryOptsFromFlags(cmd *cobra.Command, args []string) library.QueryOptions {
	provider, _ := cmd.Flags().GetString("provider")
	searchID, _ := cmd.Flags().GetString("search")
	limit, _ := cmd.Flags().GetInt("limit")

	return library.QueryOptions{
		Query:      strings.Join(args, " "),
		Provider:   types.ProviderName(provider),
		SearchID:   searchID,
		MaxResults: limit,
	}
}

// clip shortens s to max runes for table output.
func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func init() {
	for _, c := range []*cobra.Command{libraryFindCmd, libraryExportCmd} {
		c.Flags().String("provider", "", "filter by provider")
		c.Flags().String("search", "", "filter by saved search id")
	}
	libraryFindCmd.Flags().Int("limit", 0, "maximum results (0 = configured default)")
	libraryFindCmd.Flags().Bool("json", false, "output results as JSON")

	libraryRecentCmd.Flags().Int("limit", 0, "maximum searches (0 = configured default)")
	libraryRecentCmd.Flags().Bool("json", false, "output results as JSON")

	libraryExportCmd.Flags().String("format", library.FormatYAML, "export format: yaml, json or csl")
	libraryExportCmd.Flags().String("out", "", "write to a file instead of stdout")

	libraryCmd.AddCommand(libraryFindCmd)
	libraryCmd.AddCommand(libraryRecentCmd)
	libraryCmd.AddCommand(libraryAddCmd)
	libraryCmd.AddCommand(libraryExportCmd)

	rootCmd.AddCommand(libraryCmd)
}

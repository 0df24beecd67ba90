package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/contextdb/contextdb"
	"github.com/contextdb/contextdb/pkg/core"
)

var (
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "contextdb",
	Short: "CLI tool for the contextdb semantic database",
	Long:  `A command-line interface for inspecting and querying a contextdb database file.`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new database file",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("Database initialized at %s\n", dbPath)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		count, err := db.Count(context.Background())
		if err != nil {
			return fmt.Errorf("failed to count entries: %w", err)
		}

		fmt.Printf("Path:    %s\n", dbPath)
		fmt.Printf("Backend: %s\n", db.Backend().Name())
		fmt.Printf("Entries: %d\n", count)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Query entries by meaning and text",
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		topK, _ := cmd.Flags().GetInt("top-k")
		contains, _ := cmd.Flags().GetString("contains")
		exact, _ := cmd.Flags().GetString("exact")
		matches, _ := cmd.Flags().GetString("matches")
		limit, _ := cmd.Flags().GetInt("limit")
		explain, _ := cmd.Flags().GetBool("explain")

		query := core.NewQuery()

		if vectorStr != "" {
			vector, err := parseVector(vectorStr)
			if err != nil {
				return err
			}
			var t *float64
			if cmd.Flags().Changed("threshold") {
				t = &threshold
			}
			query = query.WithMeaning(vector, t)
			if cmd.Flags().Changed("top-k") {
				query = query.WithTopK(topK)
			}
		}

		switch {
		case exact != "":
			query = query.WithExpression(core.ExpressionExact(exact))
		case contains != "":
			query = query.WithExpression(core.ExpressionContains(contains))
		case matches != "":
			query = query.WithExpression(core.ExpressionMatches(matches))
		}

		if cmd.Flags().Changed("limit") {
			query = query.WithLimit(limit)
		}
		if explain {
			query = query.WithExplanation()
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		results, err := db.Query(context.Background(), &query)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}

		printResults(results)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored entries in creation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		query := core.NewQuery()
		if cmd.Flags().Changed("limit") {
			query = query.WithLimit(limit)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		results, err := db.Query(context.Background(), &query)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}

		printResults(results)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one entry as JSON (accepts an unambiguous id prefix)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := resolveEntryID(context.Background(), db, args[0])
		if err != nil {
			return err
		}

		entry, err := db.Get(context.Background(), id)
		if err != nil {
			return fmt.Errorf("failed to get entry: %w", err)
		}

		out, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List entries created within a recent window",
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")

		query := core.NewQuery().
			WithTemporal(core.CreatedAfter(time.Now().Add(-since)))
		if cmd.Flags().Changed("limit") {
			query = query.WithLimit(limit)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		results, err := db.Query(context.Background(), &query)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}

		printResults(results)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an entry and its relations (accepts an unambiguous id prefix)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := resolveEntryID(context.Background(), db, args[0])
		if err != nil {
			return err
		}

		if err := db.Delete(context.Background(), id); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}

		fmt.Printf("Entry %s deleted\n", id)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export all entries as a JSON array",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		out := os.Stdout
		if len(args) == 1 {
			f, err := os.OpenFile(args[0], os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
			if err != nil {
				return fmt.Errorf("failed to create export file: %w", err)
			}
			defer f.Close()
			out = f
		}

		if err := db.Export(context.Background(), out); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import entries from a JSON array",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open import file: %w", err)
		}
		defer f.Close()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Import(context.Background(), f)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Printf("Imported %d entries (%d skipped, %d failed)\n",
			stats.Imported, stats.Skipped, stats.Failed)
		return nil
	},
}

func openDB() (*contextdb.DB, error) {
	var opts []contextdb.Option
	if verbose {
		opts = append(opts, contextdb.WithLogger(core.NewStdLogger(core.LevelDebug)))
	}

	db, err := contextdb.Open(context.Background(), dbPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// resolveEntryID accepts a full entry id or a prefix of one. A prefix must
// match exactly one stored entry; ambiguous prefixes fail with a listing of
// the candidates.
func resolveEntryID(ctx context.Context, db *contextdb.DB, arg string) (uuid.UUID, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return id, nil
	}

	query := core.NewQuery()
	results, err := db.Query(ctx, &query)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to list entries: %w", err)
	}

	var matches []core.QueryResult
	for _, result := range results {
		if strings.HasPrefix(result.Entry.ID.String(), strings.ToLower(arg)) {
			matches = append(matches, result)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0].Entry.ID, nil
	case 0:
		return uuid.Nil, fmt.Errorf("no entry found matching %q", arg)
	default:
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d entries match %q:\n", len(matches), arg)
		for _, match := range matches {
			fmt.Fprintf(&sb, "  %s - %s\n", match.Entry.ID.String()[:12], truncate(match.Entry.Expression, 40))
		}
		sb.WriteString("please provide a more specific id")
		return uuid.Nil, errors.New(sb.String())
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	vector := make([]float32, 0, len(parts))
	for _, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector format: %w", err)
		}
		vector = append(vector, float32(val))
	}
	return vector, nil
}

func printResults(results []core.QueryResult) {
	if len(results) == 0 {
		fmt.Println("No entries found")
		return
	}

	for i, result := range results {
		fmt.Printf("%d. %s  %q\n", i+1, result.Entry.ID, result.Entry.Expression)
		if result.SimilarityScore != nil {
			fmt.Printf("   score: %.4f\n", *result.SimilarityScore)
		}
		if result.Explanation != nil {
			fmt.Printf("   %s\n", *result.Explanation)
		}
	}
	fmt.Printf("%d entries\n", len(results))
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "contextdb.db", "Database file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	searchCmd.Flags().String("vector", "", "Query vector as comma-separated floats")
	searchCmd.Flags().Float64("threshold", 0, "Minimum similarity score")
	searchCmd.Flags().Int("top-k", 0, "Keep only the K most similar entries")
	searchCmd.Flags().String("contains", "", "Match expressions containing this text")
	searchCmd.Flags().String("exact", "", "Match this exact expression")
	searchCmd.Flags().String("matches", "", "Match expressions against this regex")
	searchCmd.Flags().Int("limit", 0, "Maximum number of results")
	searchCmd.Flags().Bool("explain", false, "Explain why each result matched")

	listCmd.Flags().Int("limit", 0, "Maximum number of results")

	recentCmd.Flags().Duration("since", 24*time.Hour, "Window size, e.g. 30m or 24h")
	recentCmd.Flags().Int("limit", 0, "Maximum number of results")

	rootCmd.AddCommand(
		initCmd,
		statsCmd,
		searchCmd,
		listCmd,
		showCmd,
		recentCmd,
		deleteCmd,
		exportCmd,
		importCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

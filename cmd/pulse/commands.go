package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/productpulse/pulse/internal/config"
	"github.com/productpulse/pulse/internal/feed"
	"github.com/productpulse/pulse/internal/product"
)

// --- generate ---

var generateCmd = &cobra.Command{
	Use:   "generate [search terms...]",
	Short: "Request a product page from the running server",
	Long: `Request a product page from the running server.

Examples:
  pulse generate standing desk, cable tray
  pulse generate --like desk --dislike gaming --count 3
  pulse generate --request ./request.json --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reqFile, _ := cmd.Flags().GetString("request")
		like, _ := cmd.Flags().GetString("like")
		dislike, _ := cmd.Flags().GetString("dislike")
		count, _ := cmd.Flags().GetInt("count")
		force, _ := cmd.Flags().GetBool("force")

		req, err := buildGenerateRequest(reqFile, strings.Join(args, " "), like, dislike, count)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{"forceNovelty": force}
		raw, err := json.Marshal(req)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/generate", body)
		if err != nil {
			return err
		}

		var page struct {
			Products []product.Product `json:"products"`
			CacheHit bool              `json:"cacheHit"`
		}
		if err := decodeJSON(resp, &page); err != nil {
			return err
		}

		if page.CacheHit {
			printStep("Served from cache")
		}
		for _, p := range page.Products {
			printProduct(p)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().String("request", "", "path to a JSON generation request")
	generateCmd.Flags().String("like", "", "comma-separated liked tags")
	generateCmd.Flags().String("dislike", "", "comma-separated disliked tags")
	generateCmd.Flags().Int("count", 2, "number of products to request (2-4)")
	generateCmd.Flags().Bool("force", false, "bypass the response cache")
}

// buildGenerateRequest loads a request from path or assembles one from the
// command line. A search given on the command line is merged into either.
func buildGenerateRequest(path, search, like, dislike string, count int) (product.GenerationRequest, error) {
	var req product.GenerationRequest
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("reading request: %w", err)
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("invalid request JSON: %w", err)
		}
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if req.UserID == "" {
		req.UserID = "cli"
	}
	if req.ResultsRequested == 0 {
		req.ResultsRequested = count
	}
	req.Preferences.LikedTags = append(req.Preferences.LikedTags, splitList(like)...)
	req.Preferences.DislikedTags = append(req.Preferences.DislikedTags, splitList(dislike)...)

	if terms := feed.DeriveSearchTerms(search); len(terms) > 0 {
		req.SearchTerms = append(req.SearchTerms, terms...)
		req.Preferences = feed.MergeSearchIntoPreferences(req.Preferences, terms)
	}
	return req, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printProduct(p product.Product) {
	fmt.Fprintf(stdout, "\n%s  %s\n", colorize(colorBold, p.Title), colorize(colorCyan, string(p.Source)))
	if p.Summary != "" {
		fmt.Fprintf(stdout, "  %s\n", p.Summary)
	}
	if p.PriceRange.Currency != "" {
		fmt.Fprintf(stdout, "  %.0f-%.0f %s, novelty %.2f\n", p.PriceRange.Min, p.PriceRange.Max, p.PriceRange.Currency, p.NoveltyScore)
	}
	for _, l := range p.BuyLinks {
		label := l.Label
		if l.PriceHint != "" {
			label += " (" + l.PriceHint + ")"
		}
		fmt.Fprintf(stdout, "  → %s %s\n", label, l.URL)
	}
}

// --- scrape ---

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Read product metadata from a retailer page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/scrape", map[string]string{"url": args[0]})
		if err != nil {
			return err
		}

		var result struct {
			Payload struct {
				Title     string            `json:"title"`
				Summary   string            `json:"summary"`
				PriceText string            `json:"priceText"`
				BuyLinks  []product.BuyLink `json:"buyLinks"`
			} `json:"payload"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		md := result.Payload
		printProduct(product.Product{
			Title:    md.Title,
			Summary:  md.Summary,
			Source:   product.SourceScrape,
			BuyLinks: md.BuyLinks,
		})
		if md.PriceText == "" {
			printWarning("no price found on the page")
		}
		return nil
	},
}

// --- erase ---

var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Clear cached pages, retailer listings and rate limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This clears every cache on the running server. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/data/erase", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Caches cleared (%s)", result["id"])
		return nil
	},
}

func init() {
	eraseCmd.Flags().Bool("confirm", false, "confirm cache erase")
}

// --- metrics ---

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show the metrics summary from the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if client.metricsKey == "" {
			return fmt.Errorf("metrics.read_key is not set; set PULSE_METRICS_READ_KEY or run: pulse config set metrics.read_key <key>")
		}

		resp, err := client.get(cmd.Context(), "/api/metrics/summary")
		if err != nil {
			return err
		}

		var summary metricsSummary
		if err := decodeJSON(resp, &summary); err != nil {
			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.Type == "authentication_error" {
				printError("the server rejected metrics.read_key; check it matches the server's PULSE_METRICS_READ_KEY")
			}
			return err
		}
		if raw {
			return printJSON(summary)
		}

		printSummary(summary)
		return nil
	},
}

func init() {
	metricsCmd.Flags().Bool("json", false, "print the raw JSON summary")
}

type metricsSummary struct {
	Snapshot struct {
		Events []struct {
			Event string `json:"event"`
			Count int64  `json:"count"`
		} `json:"events"`
		Dropped int64 `json:"dropped"`
	} `json:"snapshot"`
	Retail struct {
		Cache struct {
			Entries int   `json:"entries"`
			Hits    int64 `json:"hits"`
			Misses  int64 `json:"misses"`
		} `json:"cache"`
		HotKeys int `json:"hotKeys"`
	} `json:"retail"`
}

func printSummary(s metricsSummary) {
	if len(s.Snapshot.Events) == 0 {
		fmt.Fprintln(stdout, "No events recorded.")
	}
	for _, e := range s.Snapshot.Events {
		fmt.Fprintf(stdout, "  %-40s %d\n", e.Event, e.Count)
	}
	if s.Snapshot.Dropped > 0 {
		printWarning("%d events dropped", s.Snapshot.Dropped)
	}
	printStatus("Retail cache", "%d entries, %d hits, %d misses, %d hot keys", s.Retail.Cache.Entries, s.Retail.Cache.Hits, s.Retail.Cache.Misses, s.Retail.HotKeys)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(stdout, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s", key)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}

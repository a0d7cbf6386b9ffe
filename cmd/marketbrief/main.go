// MarketBrief: AI-powered stock and document analysis with a local LLM
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketbrief/marketbrief/api"
	"github.com/marketbrief/marketbrief/internal/analyzer"
	"github.com/marketbrief/marketbrief/internal/config"
	"github.com/marketbrief/marketbrief/internal/datasource"
	"github.com/marketbrief/marketbrief/internal/extract"
	"github.com/marketbrief/marketbrief/internal/llm"
	"github.com/marketbrief/marketbrief/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "marketbrief",
	Short: "MarketBrief: AI-powered stock and document analysis",
	Long: `MarketBrief
Analyzes stock tickers and PDF documents with a local Llama model via
Ollama: live quotes with provider fallback, recent headlines, and a
short generated brief with a Positive/Neutral/Negative sentiment.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("MarketBrief %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [ticker]",
	Short: "Analyze a stock ticker from the command line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ticker := utils.NormalizeTicker(args[0])

		an := buildAnalyzer(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		fmt.Printf("🔍 Analyzing %s...\n\n", ticker)
		result, err := an.AnalyzeTicker(ctx, ticker)
		if err != nil {
			return err
		}

		if result.Quote != nil {
			if price, ok := result.Quote.Price(); ok {
				fmt.Printf("  Price:     $%.2f\n", price)
			}
			if change, ok := result.Quote.Change(); ok {
				fmt.Printf("  Change:    %+.2f%%\n", change)
			}
		}
		fmt.Printf("  Sentiment: %s\n\n", result.Sentiment)
		fmt.Println(result.Summary)
		if len(result.News) > 0 {
			fmt.Println("\n  Recent News:")
			for _, item := range result.News {
				fmt.Printf("  - %s (%s)\n", item.Title, item.Source)
			}
		}
		return nil
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := api.NewServer(cfg)
		if err != nil {
			return err
		}
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("🌐 Starting MarketBrief API server on %s\n", addr)
		return srv.ListenAndServe(addr)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  MarketBrief System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:     %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Model:       %s\n", cfg.LLM.Model)
		fmt.Printf("    Ollama URL:  %s\n", cfg.LLM.OllamaURL)
		fmt.Printf("    API Server:  %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		gen := llm.NewOllamaGenerator(cfg.LLM.OllamaURL, llm.WithOllamaModel(cfg.LLM.Model))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ollamaStatus := "✅ reachable"
		if err := gen.Ping(ctx); err != nil {
			ollamaStatus = fmt.Sprintf("❌ unreachable (%v)", err)
		}
		fmt.Printf("  Ollama:      %s\n", ollamaStatus)
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

// buildAnalyzer wires the live provider chains and Ollama generator.
func buildAnalyzer(cfg *config.Config) *analyzer.Analyzer {
	cacheTTL := time.Duration(cfg.Analysis.CacheTTLSec) * time.Second
	quotes := datasource.NewQuoteChain(
		datasource.NewYahoo(datasource.WithYahooCacheTTL(cacheTTL)),
		datasource.NewAlphaVantage(cfg.Providers.AlphaVantageKey,
			datasource.WithAlphaVantageCacheTTL(cacheTTL)),
	)
	news := datasource.NewNewsChain(
		datasource.NewYahoo(datasource.WithYahooCacheTTL(cacheTTL)),
		datasource.NewGoogleNews(datasource.WithGoogleNewsCacheTTL(cacheTTL)),
	)
	gen := llm.NewOllamaGenerator(cfg.LLM.OllamaURL,
		llm.WithOllamaModel(cfg.LLM.Model),
		llm.WithOllamaSampling(cfg.LLM.Temperature, cfg.LLM.TopP),
		llm.WithOllamaTimeout(time.Duration(cfg.LLM.TimeoutSec)*time.Second),
	)
	return analyzer.New(quotes, news, gen, extract.NewPDFExtractor(),
		analyzer.WithNewsLimit(cfg.Analysis.NewsLimit))
}

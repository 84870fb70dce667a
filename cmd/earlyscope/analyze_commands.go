package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"earlyscope/service/analysis"
	"earlyscope/service/provider"
	"earlyscope/service/solana"

	"github.com/itchyny/gojq"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Run an early-buyer analysis for a token",
		ArgsUsage: "TOKEN_ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "provider-url",
				Usage:   "Trade data provider base URL",
				EnvVars: []string{"PROVIDER_BASE_URL"},
				Value:   "https://public-api.birdeye.so",
			},
			&cli.StringFlag{
				Name:    "provider-api-key",
				Usage:   "Trade data provider API key",
				EnvVars: []string{"PROVIDER_API_KEY"},
			},
			&cli.Float64Flag{
				Name:    "rate-limit",
				Usage:   "Provider requests per second",
				EnvVars: []string{"PROVIDER_RATE_LIMIT_RPS"},
				Value:   1,
			},
			&cli.StringFlag{
				Name:    "solana-rpc-url",
				Usage:   "Solana RPC endpoint for wallet history lookups",
				EnvVars: []string{"SOLANA_RPC_URL"},
			},
			&cli.IntFlag{
				Name:    "max-buyers",
				Aliases: []string{"n"},
				Usage:   "Number of distinct early buyers to analyze",
				Value:   100,
			},
			&cli.StringFlag{
				Name:  "min-usd",
				Usage: "Ignore trades below this USD size",
			},
			&cli.StringFlag{
				Name:  "max-usd",
				Usage: "Ignore trades above this USD size",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Trade feed fetch order (asc or desc)",
				Value: "asc",
			},
			&cli.DurationFlag{
				Name:  "new-wallet-threshold",
				Usage: "Wallet age below which a buyer counts as new",
				Value: 168 * time.Hour,
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Parallel wallet lookups",
				Value: 4,
			},
			&cli.StringFlag{
				Name:    "jq",
				Aliases: []string{"q"},
				Usage:   "Filter the report through a jq expression",
			},
			&cli.BoolFlag{
				Name:    "pretty",
				Aliases: []string{"p"},
				Usage:   "Indent the JSON output",
			},
		},
		Action: runAnalyze,
	}
}

func runAnalyze(c *cli.Context) error {
	token := c.Args().First()
	if token == "" {
		return fmt.Errorf("TOKEN_ADDRESS argument is required")
	}
	if c.String("provider-api-key") == "" {
		return fmt.Errorf("provider API key is required (--provider-api-key or PROVIDER_API_KEY)")
	}
	if c.String("solana-rpc-url") == "" {
		return fmt.Errorf("Solana RPC URL is required (--solana-rpc-url or SOLANA_RPC_URL)")
	}

	logger := setupLogger(c.String("log-level"))

	cfg := analysis.Config{
		MaxBuyers:          c.Int("max-buyers"),
		SortOrder:          provider.SortOrder(c.String("sort")),
		NewWalletThreshold: c.Duration("new-wallet-threshold"),
		Concurrency:        c.Int("concurrency"),
	}
	if v := c.String("min-usd"); v != "" {
		min, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid --min-usd %q: %w", v, err)
		}
		cfg.MinTradeUSD = min
	}
	if v := c.String("max-usd"); v != "" {
		max, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid --max-usd %q: %w", v, err)
		}
		cfg.MaxTradeUSD = max
	}

	providerClient := provider.NewClient(provider.Options{
		BaseURL:           c.String("provider-url"),
		APIKey:            c.String("provider-api-key"),
		RequestsPerSecond: c.Float64("rate-limit"),
		Retry:             provider.DefaultRetryPolicy,
		Logger:            logger,
	})
	historyClient := solana.NewClient(solana.NewRPCClient(c.String("solana-rpc-url")), nil, logger)

	analyzer := analysis.NewAnalyzer(providerClient, historyClient, nil, logger)

	report, err := analyzer.Analyze(c.Context, token, cfg)
	if err != nil {
		// A stage failure still carries the partial report; print what we
		// have so a long run is not wasted, then fail.
		if report != nil {
			if printErr := printJSON(c, report); printErr != nil {
				return printErr
			}
		}
		return err
	}

	return printJSON(c, report)
}

// printJSON writes v to stdout as JSON, optionally filtered through a jq
// expression and optionally indented.
func printJSON(c *cli.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	if expr := c.String("jq"); expr != "" {
		query, err := gojq.Parse(expr)
		if err != nil {
			return fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
		}
		code, err := gojq.Compile(query)
		if err != nil {
			return fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
		}

		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to decode output for jq: %w", err)
		}

		iter := code.Run(doc)
		enc := json.NewEncoder(os.Stdout)
		if c.Bool("pretty") {
			enc.SetIndent("", "  ")
		}
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				return fmt.Errorf("jq filter error: %w", err)
			}
			if err := enc.Encode(v); err != nil {
				return err
			}
		}
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	if c.Bool("pretty") {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

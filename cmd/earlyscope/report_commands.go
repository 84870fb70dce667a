package main

import (
	"fmt"
	"strconv"
	"time"

	"earlyscope/service/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func listReportsCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List persisted reports for a token",
		ArgsUsage: "TOKEN_ADDRESS",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of reports to return",
				Value: 20,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of reports to skip",
			},
			&cli.StringFlag{
				Name:    "jq",
				Aliases: []string{"q"},
				Usage:   "Filter the output through a jq expression",
			},
			&cli.BoolFlag{
				Name:    "pretty",
				Aliases: []string{"p"},
				Usage:   "Indent the JSON output",
			},
		},
		Action: func(c *cli.Context) error {
			token := c.Args().First()
			if token == "" {
				return fmt.Errorf("TOKEN_ADDRESS argument is required")
			}

			store, pool, err := openStore(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			records, err := store.ListReports(c.Context, token, int32(c.Int("limit")), int32(c.Int("offset")))
			if err != nil {
				return err
			}

			// Summaries only; use `reports get` for a full report body.
			type summary struct {
				ID             int64  `json:"id"`
				TokenAddress   string `json:"token_address"`
				BuyerCount     int    `json:"buyer_count"`
				NewWalletCount int    `json:"new_wallet_count"`
				CreatedAt      string `json:"created_at"`
			}
			summaries := make([]summary, 0, len(records))
			for _, rec := range records {
				summaries = append(summaries, summary{
					ID:             rec.ID,
					TokenAddress:   rec.TokenAddress,
					BuyerCount:     rec.BuyerCount,
					NewWalletCount: rec.NewWalletCount,
					CreatedAt:      rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
				})
			}
			return printJSON(c, summaries)
		},
	}
}

func getReportCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Fetch one report by id, or the latest for a token",
		ArgsUsage: "REPORT_ID | TOKEN_ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "jq",
				Aliases: []string{"q"},
				Usage:   "Filter the output through a jq expression",
			},
			&cli.BoolFlag{
				Name:    "pretty",
				Aliases: []string{"p"},
				Usage:   "Indent the JSON output",
			},
		},
		Action: func(c *cli.Context) error {
			arg := c.Args().First()
			if arg == "" {
				return fmt.Errorf("REPORT_ID or TOKEN_ADDRESS argument is required")
			}

			store, pool, err := openStore(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			var rec *db.ReportRecord
			if id, parseErr := strconv.ParseInt(arg, 10, 64); parseErr == nil {
				rec, err = store.GetReport(c.Context, id)
			} else {
				rec, err = store.GetLatestReport(c.Context, arg)
			}
			if err != nil {
				return err
			}

			return printJSON(c, rec.Report)
		},
	}
}

func pruneReportsCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete reports older than a retention window",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "older-than",
				Usage: "Delete reports created before now minus this duration",
				Value: 30 * 24 * time.Hour,
			},
		},
		Action: func(c *cli.Context) error {
			store, pool, err := openStore(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			cutoff := time.Now().Add(-c.Duration("older-than"))
			n, err := store.DeleteReportsOlderThan(c.Context, cutoff)
			if err != nil {
				return err
			}

			fmt.Printf("deleted %d reports older than %s\n", n, cutoff.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}
}

// openStore connects to the database using the global --database-url flag.
func openStore(c *cli.Context) (*db.Store, *pgxpool.Pool, error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database URL is required (--database-url or DATABASE_URL)")
	}

	pool, err := pgxpool.New(c.Context, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(c.Context); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db.NewStore(pool), pool, nil
}

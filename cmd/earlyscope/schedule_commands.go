package main

import (
	"fmt"
	"time"

	"earlyscope/service/temporal"

	"github.com/urfave/cli/v2"
)

func createScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Aliases:   []string{"add"},
		Usage:     "Create or update a recurring analysis schedule for a token",
		ArgsUsage: "TOKEN_ADDRESS",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "How often to re-analyze the token (e.g., 1h, 6h)",
				Value:   6 * time.Hour,
			},
			&cli.IntFlag{
				Name:    "max-buyers",
				Aliases: []string{"n"},
				Usage:   "Number of distinct early buyers to analyze",
				Value:   100,
			},
			&cli.DurationFlag{
				Name:  "new-wallet-threshold",
				Usage: "Wallet age below which a buyer counts as new",
				Value: 168 * time.Hour,
			},
			&cli.StringFlag{
				Name:  "min-usd",
				Usage: "Ignore trades below this USD size",
			},
			&cli.StringFlag{
				Name:  "max-usd",
				Usage: "Ignore trades above this USD size",
			},
		},
		Action: func(c *cli.Context) error {
			token := c.Args().First()
			if token == "" {
				return fmt.Errorf("TOKEN_ADDRESS argument is required")
			}

			client, err := openTemporal(c)
			if err != nil {
				return err
			}
			defer client.Close()

			input := temporal.AnalyzeTokenInput{
				TokenAddress:       token,
				MaxBuyers:          c.Int("max-buyers"),
				NewWalletThreshold: c.Duration("new-wallet-threshold"),
				MinTradeUSD:        c.String("min-usd"),
				MaxTradeUSD:        c.String("max-usd"),
			}

			if err := client.UpsertTokenSchedule(c.Context, input, c.Duration("interval")); err != nil {
				return err
			}

			fmt.Printf("schedule created for %s (every %s)\n", token, c.Duration("interval"))
			return nil
		},
	}
}

func deleteScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"remove"},
		Usage:     "Delete a token's recurring analysis schedule",
		ArgsUsage: "TOKEN_ADDRESS",
		Action: func(c *cli.Context) error {
			token := c.Args().First()
			if token == "" {
				return fmt.Errorf("TOKEN_ADDRESS argument is required")
			}

			client, err := openTemporal(c)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.DeleteTokenSchedule(c.Context, token); err != nil {
				return err
			}

			fmt.Printf("schedule deleted for %s\n", token)
			return nil
		},
	}
}

// openTemporal connects to Temporal using the global flags.
func openTemporal(c *cli.Context) (*temporal.Client, error) {
	return temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("temporal-task-queue"),
		setupLogger(c.String("log-level")),
	)
}

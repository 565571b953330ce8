package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"smallbiz_analytics/pkg/core/config"
	"smallbiz_analytics/pkg/core/export"
	"smallbiz_analytics/pkg/core/ingest"
	"smallbiz_analytics/pkg/core/logging"
	"smallbiz_analytics/pkg/core/pipeline"
	"smallbiz_analytics/pkg/core/valuation"
)

func main() {
	app := &cli.App{
		Name:  "pipeline",
		Usage: "small-business sales, pricing and cash-flow analytics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env", Value: ".env", Usage: "optional .env file"},
		},
		Commands: []*cli.Command{
			runCommand(),
			ratesCommand(),
			capitalCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads settings and builds the logger. Logs go to stderr so stdout
// carries only the summary.
func setup(c *cli.Context) (*config.Settings, *logrus.Logger, error) {
	settings, err := config.Load(c.String("env"))
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewWithOutput(settings.LogLevel, settings.LogFormat, os.Stderr)
	return settings, logger, nil
}

func ratesClient(s *config.Settings) *ingest.RatesClient {
	return ingest.NewRatesClient(ingest.RatesConfig{
		BaseURL:     s.RatesBaseURL,
		Timeout:     s.RatesTimeout,
		SelicSeries: s.SelicSeries,
		IPCASeries:  s.IPCASeries,
	})
}

// =============================================================================
// run
// =============================================================================

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run every analysis stage and write the artifacts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Usage: "output directory (overrides OUTPUT_DIR)"},
			&cli.BoolFlag{Name: "rates", Usage: "look up reference rates (overrides RATES_ENABLED)"},
			&cli.BoolFlag{Name: "no-export", Usage: "skip writing artifacts"},
		},
		Action: func(c *cli.Context) error {
			settings, logger, err := setup(c)
			if err != nil {
				return err
			}

			// 1. Schemas and inputs
			schemas, err := loadSchemas(settings)
			if err != nil {
				logging.LogError(logger, "main", "run", "schemas", settings.SchemaPath, err)
				return err
			}
			inputs, err := pipeline.LoadInputs(settings, schemas)
			if err != nil {
				logging.LogError(logger, "main", "run", "inputs", settings.SalesPath, err)
				return err
			}

			// 2. Stages
			orch := pipeline.NewOrchestrator(pipeline.OptionsFromSettings(settings, schemas), logger)
			if settings.RatesEnabled || c.Bool("rates") {
				orch.SetRateSource(ratesClient(settings))
			}
			report, err := orch.Run(c.Context, inputs)
			if err != nil {
				return err
			}

			// 3. Artifacts
			if !c.Bool("no-export") {
				dir := settings.OutputDir
				if c.String("out") != "" {
					dir = c.String("out")
				}
				paths, err := pipeline.WriteArtifacts(report, dir, settings.CurrencySymbol)
				if err != nil {
					logging.LogError(logger, "main", "run", "artifacts", dir, err)
					return err
				}
				for _, p := range paths {
					logger.WithField("path", p).Info("artifact written")
				}
			}

			printSummary(report, settings.CurrencySymbol)
			return nil
		},
	}
}

func loadSchemas(s *config.Settings) (*config.Schemas, error) {
	if s.SchemaPath != "" {
		return config.LoadSchemas(s.SchemaPath)
	}
	return config.DefaultSchemas()
}

func printSummary(r *pipeline.Report, currency string) {
	fmt.Printf("Run %s\n", r.RunID)
	fmt.Printf("Items analyzed: %d  Issues: %d\n\n", len(r.LatestPrices), len(r.Issues))

	if len(r.Comparison) > 0 {
		fmt.Printf("%-24s %16s %16s %10s\n", "Item", "Atual", "Ótimo", "Dif.")
		for _, row := range r.Comparison {
			fmt.Printf("%-24s %16s %16s %10s\n", row.Item,
				export.Money(currency, row.CurrentPrice),
				export.Money(currency, row.OptimalPrice),
				export.Percent(row.PercentDifference))
		}
		fmt.Println()
	}
	for _, p := range r.Projection {
		if p.Projected {
			fmt.Printf("%d  receita %s  margem %s\n", p.Year, export.Money(currency, p.Revenue), export.Money(currency, p.Margin))
		}
	}
	if r.Rates != nil {
		fmt.Printf("\nSelic %s  IPCA 12m %s  VPL %s\n",
			export.Percent(r.Rates.Benchmark*100),
			export.Percent(r.Rates.Inflation*100),
			export.Money(currency, r.Rates.ProjectedNPV))
	}
	for _, issue := range r.Issues {
		fmt.Println("!", issue.String())
	}
}

// =============================================================================
// rates
// =============================================================================

func ratesCommand() *cli.Command {
	return &cli.Command{
		Name:  "rates",
		Usage: "print the current Selic rate and trailing 12-month IPCA",
		Action: func(c *cli.Context) error {
			settings, logger, err := setup(c)
			if err != nil {
				return err
			}
			client := ratesClient(settings)
			ctx := c.Context

			selic, err := client.Latest(ctx, settings.SelicSeries)
			if err != nil {
				logging.LogError(logger, "main", "rates", "selic", settings.SelicSeries, err)
				return err
			}
			ipca, err := client.TrailingInflation(ctx)
			if err != nil {
				logging.LogError(logger, "main", "rates", "ipca", settings.IPCASeries, err)
				return err
			}
			fmt.Printf("Selic (%s): %s\n", selic.Date.Format("02/01/2006"), export.Percent(selic.Value*100))
			fmt.Printf("IPCA 12 meses: %s\n", export.Percent(ipca*100))
			return nil
		},
	}
}

// =============================================================================
// capital
// =============================================================================

func capitalCommand() *cli.Command {
	return &cli.Command{
		Name:      "capital",
		Usage:     "capital-budgeting metrics over cash flows given as arguments",
		ArgsUsage: "-- CF0 CF1 ...",
		Subcommands: []*cli.Command{
			{
				Name:  "npv",
				Usage: "net present value, first flow undiscounted",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "rate", Required: true, Usage: "discount rate per period, decimal"},
				},
				Action: func(c *cli.Context) error {
					flows, err := parseFlows(c.Args().Slice())
					if err != nil {
						return err
					}
					fmt.Println(valuation.NPV(c.Float64("rate"), flows))
					return nil
				},
			},
			{
				Name:  "irr",
				Usage: "internal rate of return",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "guess", Value: valuation.DefaultIRROptions().Guess},
				},
				Action: func(c *cli.Context) error {
					flows, err := parseFlows(c.Args().Slice())
					if err != nil {
						return err
					}
					opts := valuation.DefaultIRROptions()
					opts.Guess = c.Float64("guess")
					rate, err := valuation.IRR(flows, opts)
					if err != nil {
						return err
					}
					fmt.Println(rate)
					return nil
				},
			},
			{
				Name:  "mirr",
				Usage: "modified internal rate of return",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "finance", Required: true, Usage: "finance rate, decimal"},
					&cli.Float64Flag{Name: "reinvest", Required: true, Usage: "reinvestment rate, decimal"},
				},
				Action: func(c *cli.Context) error {
					flows, err := parseFlows(c.Args().Slice())
					if err != nil {
						return err
					}
					rate, err := valuation.MIRR(flows, c.Float64("finance"), c.Float64("reinvest"))
					if err != nil {
						return err
					}
					fmt.Println(rate)
					return nil
				},
			},
		},
	}
}

func parseFlows(args []string) ([]float64, error) {
	if len(args) == 0 {
		return nil, cli.Exit("no cash flows given", 2)
	}
	flows := make([]float64, len(args))
	for i, a := range args {
		d, err := decimal.NewFromString(a)
		if err != nil {
			return nil, fmt.Errorf("cash flow %d (%q): %w", i, a, err)
		}
		flows[i] = d.InexactFloat64()
	}
	return flows, nil
}

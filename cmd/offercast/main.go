package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nzahrani/offercast/internal/alerting"
	"github.com/nzahrani/offercast/internal/api"
	"github.com/nzahrani/offercast/internal/config"
	"github.com/nzahrani/offercast/internal/cron"
	"github.com/nzahrani/offercast/internal/distribution"
	"github.com/nzahrani/offercast/internal/extract"
	"github.com/nzahrani/offercast/internal/ingest"
	"github.com/nzahrani/offercast/internal/migrate"
	"github.com/nzahrani/offercast/internal/notification"
	"github.com/nzahrani/offercast/internal/pricing"
	"github.com/nzahrani/offercast/internal/storage"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "offercast",
		Short:        "Merchandise offer ingestion and distribution",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), workerCmd(), migrateCmd(), analyzeCmd(), distributeCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			mux := api.NewMux(cfg)
			addr := ":" + cfg.Port
			log.Printf("offercast listening on %s", addr)
			return http.ListenAndServe(addr, mux)
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the delivery retry worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return cron.Run(ctx, config.FromEnv())
		},
	}
}

func migrateCmd() *cobra.Command {
	var driver, dsn string

	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply or inspect schema migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if driver == "" {
				driver = cfg.DBDriver
			}
			if dsn == "" {
				dsn = cfg.DBDSN
			}
			if driver == "memory" {
				return fmt.Errorf("the memory driver has no schema to migrate")
			}
			ctx := cmd.Context()
			switch args[0] {
			case "up":
				return migrate.Up(ctx, driver, dsn)
			case "down":
				return migrate.Down(ctx, driver, dsn)
			case "status":
				return migrate.Status(ctx, driver, dsn)
			default:
				return fmt.Errorf("unknown migrate action %q", args[0])
			}
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "", "database driver (defaults to OFFERCAST_DB_DRIVER)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database DSN (defaults to OFFERCAST_DB_DSN)")
	return cmd
}

// analyzeCmd runs extraction over a raw supplier message without saving
// anything. PDF files are converted to plain text first; with no argument
// the text is read from stdin.
func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [file]",
		Short: "Extract structured offers from a supplier message or PDF",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("no input text")
			}

			cfg := config.FromEnv()
			ctx := cmd.Context()
			st, err := storage.Open(ctx, storage.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
			if err != nil {
				return err
			}
			defer st.Close()

			gemini := extract.NewGemini(cfg.GoogleAPIKey)
			if cfg.GeminiModel != "" {
				gemini.Model = cfg.GeminiModel
			}
			svc := ingest.NewService(st, gemini).WithKeywordMatcher(gemini)

			groups, err := svc.Analyze(ctx, text)
			if err != nil {
				return err
			}
			var names []string
			for _, g := range groups {
				if g.GroupingName != "" {
					names = append(names, g.GroupingName)
				}
			}
			gaps, err := svc.MissingFees(ctx, names)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"groups":       groups,
				"missing_fees": gaps,
			})
		},
	}
}

// distributeCmd re-sends a supplier's stored offers, to every active
// subscriber or to a single one with --subscriber. Useful after fixing
// rates or transport credentials.
func distributeCmd() *cobra.Command {
	var supplierID uint
	var subscriberID uint
	var limit int

	cmd := &cobra.Command{
		Use:   "distribute",
		Short: "Send a supplier's saved offers to subscribers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if supplierID == 0 {
				return fmt.Errorf("--supplier is required")
			}
			cfg := config.FromEnv()
			ctx := cmd.Context()
			st, err := storage.Open(ctx, storage.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
			if err != nil {
				return err
			}
			defer st.Close()

			supplier, err := st.GetSupplier(ctx, supplierID)
			if err != nil {
				return err
			}
			if supplier == nil {
				return fmt.Errorf("supplier %d not found", supplierID)
			}
			offers, err := st.ListOffers(ctx, storage.OfferFilter{SupplierID: supplierID, Limit: limit})
			if err != nil {
				return err
			}
			if len(offers) == 0 {
				return fmt.Errorf("supplier %d has no saved offers", supplierID)
			}

			sender := notification.NewService(st).WithCountryPrefix(cfg.CountryPrefix)
			engine := distribution.NewEngine(pricing.NewEngine(st), sender, st).
				WithWorkers(cfg.Workers).
				WithSendTimeout(cfg.SendTimeout)

			var report distribution.Report
			if subscriberID != 0 {
				sub, err := st.GetSubscriber(ctx, subscriberID)
				if err != nil {
					return err
				}
				if sub == nil {
					return fmt.Errorf("subscriber %d not found", subscriberID)
				}
				report = engine.Distribute(ctx, offers, *supplier, []storage.Subscriber{*sub})
			} else {
				report, err = engine.DistributeToAll(ctx, st, offers, *supplier)
				if err != nil {
					return err
				}
			}
			log.Printf("distribution finished: sent=%d skipped=%d failed=%d",
				report.Sent(), report.Skipped(), report.Failed())

			if ac := alerting.DefaultAlertConfig(); ac.Enabled && report.Failed() > 0 {
				if err := alerting.NewAlerter(ac).SendRunAlert(ctx, alerting.FromReport(report)); err != nil {
					log.Printf("distribution alert failed: %v", err)
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().UintVar(&supplierID, "supplier", 0, "supplier ID whose offers to distribute")
	cmd.Flags().UintVar(&subscriberID, "subscriber", 0, "send to this subscriber only (0 = all active)")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap on the number of offers (0 = all)")
	return cmd
}

func readInput(args []string) (string, error) {
	if len(args) == 0 {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	path := args[0]
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return extract.PDFText(path)
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"spendings/internal/amqp"
	"spendings/internal/backend"
	"spendings/internal/cli"
	"spendings/internal/config"
	"spendings/internal/core"
	"spendings/internal/importer"
	"spendings/internal/log"
	"spendings/internal/report"
	"spendings/internal/source"
)

type app struct {
	cfg      *config.Config
	logger   *log.Logger
	logLevel string
	compact  bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "spendings-cli",
		Short: "Parse, report on and manage spending exports",
		Long: `spendings-cli reads semicolon-delimited spending exports from local files,
HTTP, Cloud Storage or Google Sheets, prints the parsed records or the derived
report, and manages the records persisted by the spendings server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cli.LoadEnvFile()
			cfg, err := cli.LoadAndValidateConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			level := a.logLevel
			if level == "" {
				level = cfg.LogLevel
			}
			a.logger = cli.SetupLogger(level, cmd.ErrOrStderr()).WithComponent(log.ComponentCLI)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")
	root.PersistentFlags().BoolVar(&a.compact, "compact", false, "print JSON on one line")

	root.AddCommand(
		a.parseCmd(),
		a.reportCmd(),
		a.importCmd(),
		a.recordsCmd(),
		a.clearCmd(),
		a.enqueueCmd(),
	)
	return root
}

func (a *app) parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <source>",
		Short: "Parse a source and print the records, errors and summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.print(cmd, a.parse(cmd.Context(), args[0]))
		},
	}
}

func (a *app) reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <source>",
		Short: "Parse a source and print the summary and every series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := a.parse(cmd.Context(), args[0])
			for _, perr := range result.Errors {
				a.logger.Warn("Rejected row", log.FieldRow, perr.Row, log.FieldField, perr.Field, "message", perr.Message)
			}
			rep, err := report.Build(cmd.Context(), result.Records)
			if err != nil {
				return err
			}
			return a.print(cmd, rep)
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [source]",
		Short: "Import a source into the configured store (default: INPUT_SOURCE)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := ""
			if len(args) == 1 {
				uri = args[0]
			}
			return a.withLedger(cmd.Context(), func(ledger *cli.Ledger) error {
				result, err := ledger.Service.Import(cmd.Context(), uri)
				if printErr := a.print(cmd, result); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}
}

func (a *app) recordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "records",
		Short: "Print the records persisted in the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(ledger *cli.Ledger) error {
				if err := ledger.Service.Restore(cmd.Context()); err != nil {
					return err
				}
				snap := ledger.Service.Snapshot()
				return a.print(cmd, struct {
					Records []core.Record     `json:"records"`
					Summary *core.DataSummary `json:"summary"`
				}{snap.Records, snap.Summary})
			})
		},
	}
}

func (a *app) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all persisted records from the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(ledger *cli.Ledger) error {
				if err := ledger.Service.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %s store\n", a.cfg.DataBackend)
				return nil
			})
		},
	}
}

func (a *app) enqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue [source]",
		Short: "Ask the import worker to import a source (default: the worker's INPUT_SOURCE)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := ""
			if len(args) == 1 {
				uri = args[0]
			}
			client, err := cli.InitAMQP(a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer client.Close()

			msg := amqp.NewImportRequestMessage(uri)
			if err := client.PublishImportRequest(cmd.Context(), msg); err != nil {
				return fmt.Errorf("publish import request: %w", err)
			}
			a.logger.Info("Import request published", log.FieldImportID, msg.ImportID, log.FieldSource, uri)
			fmt.Fprintln(cmd.OutOrStdout(), msg.ImportID)
			return nil
		},
	}
}

// parse reads uri the same way the ledger does; an unusable source becomes
// a file error in the result.
func (a *app) parse(ctx context.Context, uri string) core.ParseResult {
	src, err := source.Open(uri, source.DefaultOptions(a.cfg.FetchTimeout))
	if err != nil {
		return core.EmptyResult(core.ParseError{Row: 0, Field: core.FieldFile, Message: err.Error()})
	}
	return importer.Import(ctx, src)
}

func (a *app) withLedger(ctx context.Context, fn func(*cli.Ledger) error) error {
	store, err := cli.InitBackend(ctx, a.logger, a.cfg)
	if err != nil {
		return err
	}
	defer func(store *backend.BackendResult) {
		if err := store.Close(); err != nil {
			a.logger.Warn("Failed to close backend", log.FieldError, err)
		}
	}(store)

	ledger := cli.NewLedger(a.cfg, store, nil, a.logger)
	defer ledger.Caches.Stop()
	return fn(ledger)
}

func (a *app) print(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if !a.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Dan9191/rent-ledger/internal/clock"
	"github.com/Dan9191/rent-ledger/internal/config"
	"github.com/Dan9191/rent-ledger/internal/finance"
	"github.com/Dan9191/rent-ledger/internal/notify"
	"github.com/Dan9191/rent-ledger/internal/report"
	"github.com/Dan9191/rent-ledger/internal/scheduler"
	"github.com/Dan9191/rent-ledger/internal/service"
	"github.com/Dan9191/rent-ledger/internal/snapshot"
)

// env is what every subcommand needs, built from the persistent flags
type env struct {
	cfg    *config.Config
	store  *snapshot.Snapshot
	clock  clock.Clock
	svc    *service.Service
	logger *logrus.Logger
}

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Reconcile rental ledgers from a JSON snapshot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("input", "i", "", "snapshot JSON file")
	root.PersistentFlags().String("now", "", "reference time, RFC3339 or YYYY-MM-DD (default: current time)")
	root.PersistentFlags().Bool("verbose", false, "log data-quality warnings to stderr")

	root.AddCommand(
		YearlyCmd(),
		ProfitabilityCmd(),
		OrphansCmd(),
		ExportCmd(),
		VerifyCmd(),
		RemindCmd(),
	)
	return root
}

func newEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(logrus.ErrorLevel)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	input, _ := cmd.Flags().GetString("input")
	if input == "" {
		return nil, fmt.Errorf("required flag \"input\" not set")
	}
	store, err := snapshot.LoadFile(input)
	if err != nil {
		return nil, err
	}

	nowFlag, _ := cmd.Flags().GetString("now")
	clk, err := parseClock(nowFlag, cfg.Location)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:    cfg,
		store:  store,
		clock:  clk,
		svc:    service.NewService(store, finance.NewEngine(clk), logger, cfg),
		logger: logger,
	}, nil
}

func parseClock(s string, loc *time.Location) (clock.Clock, error) {
	if s == "" {
		return clock.Real{Loc: loc}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return clock.NewFixed(t.In(loc)), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid --now %q: expected RFC3339 or YYYY-MM-DD", s)
	}
	return clock.NewFixed(t), nil
}

// yearFlags registers the flags shared by the year reports
func yearFlags(cmd *cobra.Command) {
	cmd.Flags().String("team", "", "team id")
	cmd.Flags().Int("year", time.Now().Year(), "reporting year")
	cmd.Flags().String("statuses", "", "lease statuses in scope, comma separated or \"all\" (default active,pending)")
	cmd.MarkFlagRequired("team")
}

func yearArgs(cmd *cobra.Command) (string, int, finance.ScopeFilter, error) {
	team, _ := cmd.Flags().GetString("team")
	year, _ := cmd.Flags().GetInt("year")
	statuses, _ := cmd.Flags().GetString("statuses")
	scope, err := finance.ParseScope(statuses)
	if err != nil {
		return "", 0, finance.ScopeFilter{}, err
	}
	return team, year, scope, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func YearlyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "yearly",
		Short: "Print the monthly ledger and yearly summary of a team",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			team, year, scope, err := yearArgs(cmd)
			if err != nil {
				return err
			}
			rep, err := e.svc.YearlyFinancials(cmd.Context(), team, year, scope)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rep)
		},
	}
	yearFlags(cmd)
	return cmd
}

func ProfitabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profitability",
		Short: "Print revenue, expenses and margin per property",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			team, year, scope, err := yearArgs(cmd)
			if err != nil {
				return err
			}
			rep, err := e.svc.Profitability(cmd.Context(), team, year, scope)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rep)
		},
	}
	yearFlags(cmd)
	return cmd
}

func OrphansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List leases not linked to a property, optionally linking one",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			team, _ := cmd.Flags().GetString("team")
			lease, _ := cmd.Flags().GetString("link-lease")
			property, _ := cmd.Flags().GetString("property")
			output, _ := cmd.Flags().GetString("output")

			if lease != "" {
				if err := e.svc.LinkLease(cmd.Context(), team, lease, property); err != nil {
					return err
				}
				if output != "" {
					if err := saveSnapshot(e.store, output); err != nil {
						return err
					}
				}
			}
			leases, err := e.svc.OrphanLeases(cmd.Context(), team)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), leases)
		},
	}
	cmd.Flags().String("team", "", "team id")
	cmd.Flags().String("link-lease", "", "lease to link before listing")
	cmd.Flags().String("property", "", "property to link the lease to")
	cmd.Flags().String("output", "", "write the updated snapshot to this file")
	cmd.MarkFlagRequired("team")
	return cmd
}

func saveSnapshot(s *snapshot.Snapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	if err := s.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the signed XML report of a team's year",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			team, year, scope, err := yearArgs(cmd)
			if err != nil {
				return err
			}
			yearly, profit, err := e.svc.Export(cmd.Context(), team, year, scope)
			if err != nil {
				return err
			}
			_, err = report.NewExporter(e.cfg.HMACSecret).WriteTo(cmd.OutOrStdout(), report.Document{
				TeamID:        yearly.TeamID,
				Year:          yearly.Year,
				GeneratedAt:   yearly.GeneratedAt,
				Months:        yearly.Months,
				Summary:       yearly.Summary,
				Profitability: *profit,
			})
			return err
		},
	}
	yearFlags(cmd)
	return cmd
}

func VerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [report.xml]",
		Short: "Check the signature of an exported report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read report: %w", err)
			}
			if err := report.NewExporter(cfg.HMACSecret).Verify(raw); err != nil {
				return err
			}
			doc, err := report.Decode(raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signature ok: team %s, year %d, generated %s\n",
				doc.TeamID, doc.Year, doc.GeneratedAt.Format(time.RFC3339))
			return nil
		},
	}
}

// printNotifier writes notices instead of mailing them
type printNotifier struct {
	w io.Writer
}

func (p printNotifier) SendOverdueNotice(n notify.Notice) error {
	_, err := fmt.Fprintf(p.w, "%s\t%s\t%d overdue\t%s\n", n.To, n.TeamName, n.OverdueCount, n.OverdueAmount.StringFixed(2))
	return err
}

func RemindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Run the overdue reminder job once over the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			send, _ := cmd.Flags().GetBool("send")
			var n scheduler.Notifier = printNotifier{w: cmd.OutOrStdout()}
			if send {
				n = notify.NewSender(e.cfg, e.logger)
			}
			s, err := scheduler.New(e.cfg, e.svc, n, e.clock, e.logger)
			if err != nil {
				return err
			}
			sent, err := s.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d notice(s)\n", sent)
			return nil
		},
	}
	cmd.Flags().Bool("send", false, "deliver notices over SMTP instead of printing them")
	return cmd
}

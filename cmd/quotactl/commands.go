package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/formloom/quota/pkg/config"
	"github.com/formloom/quota/pkg/httpserver"
	"github.com/formloom/quota/pkg/logger"
	"github.com/formloom/quota/pkg/pg"
	"github.com/formloom/quota/pkg/plan"
	"github.com/formloom/quota/pkg/quota"
	"github.com/formloom/quota/pkg/quotahttp"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// cli carries state shared by every subcommand.
type cli struct {
	configOpts []config.Option
	output     string
}

func newRootCmd(configOpts ...config.Option) *cobra.Command {
	c := &cli{configOpts: configOpts}

	root := &cobra.Command{
		Use:           "quotactl",
		Short:         "Usage quota and subscription enforcement for form builder tenants",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if c.output != outputTable && c.output != outputJSON {
				return fmt.Errorf("invalid --output %q: must be %s or %s", c.output, outputTable, outputJSON)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.output, "output", "o", outputTable, "output format: table or json")

	root.AddCommand(
		c.serveCmd(),
		c.plansCmd(),
		c.statusCmd(),
		c.checkCmd(),
		c.recordCmd(),
		c.resetCmd(),
		c.recommendCmd(),
		c.subscriptionCmd(),
		c.setPlanCmd(),
		c.migrateCmd(),
		versionCmd(),
	)
	return root
}

func (c *cli) loadConfig() (appConfig, error) {
	var cfg appConfig
	if err := config.Load(&cfg, c.configOpts...); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// open builds the engine. Logs go to w so command output on stdout stays parseable.
func (c *cli) open(ctx context.Context, w io.Writer) (*app, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.NewFromConfig(cfg.Log, logger.WithOutput(w))
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, log)
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the quota HTTP API, health checks and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			log, err := logger.NewFromConfig(cfg.Log,
				logger.WithOutput(cmd.OutOrStdout()),
				logger.WithContextExtractors(quotahttp.RequestIDExtractor),
			)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			g, ctx := errgroup.WithContext(ctx)

			api := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log.With(logger.Component("api"))))
			g.Go(func() error { return api.Run(ctx, a.router()) })

			if cfg.MetricsAddr != "" {
				metrics := httpserver.New(
					httpserver.WithAddr(cfg.MetricsAddr),
					httpserver.WithLogger(log.With(logger.Component("metrics"))),
				)
				g.Go(func() error { return metrics.Run(ctx, a.metricsHandler()) })
			}

			return g.Wait()
		},
	}
}

func (c *cli) plansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List the plan catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cmd.Context(), cfg.PlansFile)
			if err != nil {
				return err
			}
			plans := catalog.Plans()

			return c.print(cmd, plans, func(tw *tabwriter.Writer) {
				header := []string{"ID", "NAME", "TIER"}
				for _, a := range plan.Actions() {
					header = append(header, strings.ToUpper(string(a)))
				}
				fmt.Fprintln(tw, strings.Join(header, "\t"))
				for _, p := range plans {
					row := []string{p.ID, p.Name, string(p.Tier)}
					for _, a := range plan.Actions() {
						row = append(row, formatLimit(p.Limit(a)))
					}
					fmt.Fprintln(tw, strings.Join(row, "\t"))
				}
			})
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <tenant> [action...]",
		Short: "Show quota status for a tenant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actions, err := parseActions(args[1:])
			if err != nil {
				return err
			}

			a, err := c.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			statuses, err := a.engine.GetQuotaStatuses(cmd.Context(), args[0], actions...)
			if err != nil {
				return err
			}
			if len(actions) == 0 {
				actions = plan.Actions()
			}

			ordered := make([]quota.Status, 0, len(actions))
			for _, act := range actions {
				ordered = append(ordered, statuses[act])
			}

			return c.print(cmd, ordered, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ACTION\tUSED\tLIMIT\tREMAINING\tUSAGE\tALLOWED")
				for _, s := range ordered {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d%%\t%t\n",
						s.Action, s.CurrentUsage, formatLimit(s.Limit), formatLimit(s.Remaining()),
						s.DisplayPercentage(), s.CanPerform)
				}
			})
		},
	}
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <tenant> <action> [amount]",
		Short: "Check whether a tenant may perform an action; exits non-zero when denied",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			act, amount, err := parseActionAmount(args[1:])
			if err != nil {
				return err
			}

			a, err := c.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			d := a.engine.CanPerform(cmd.Context(), args[0], act, amount)
			if err := c.printDecision(cmd, d); err != nil {
				return err
			}
			return d.Err()
		},
	}
}

func (c *cli) recordCmd() *cobra.Command {
	var enforce bool

	cmd := &cobra.Command{
		Use:   "record <tenant> <action> [amount]",
		Short: "Record usage for a tenant",
		Long: "Record usage for a tenant. Without --enforce the increment is unconditional, " +
			"as for actions the caller already performed.",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			act, amount, err := parseActionAmount(args[1:])
			if err != nil {
				return err
			}

			a, err := c.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if enforce {
				d := a.engine.Consume(cmd.Context(), args[0], act, amount)
				if err := c.printDecision(cmd, d); err != nil {
					return err
				}
				return d.Err()
			}

			if err := a.engine.RecordUsage(cmd.Context(), args[0], act, amount); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %d %s for %s\n", amount, act, args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&enforce, "enforce", false, "atomically check the limit before recording")
	return cmd
}

func (c *cli) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <tenant> <action>",
		Short: "Reset a tenant's counter for the current billing period",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := plan.ParseAction(args[1])
			if err != nil {
				return err
			}

			a, err := c.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.ResetUsage(cmd.Context(), args[0], act); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s for %s\n", act, args[0])
			return nil
		},
	}
}

func (c *cli) recommendCmd() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "recommend [action=count...]",
		Short: "Recommend the lowest plan that fits a usage snapshot or a tenant's current usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantID != "" && len(args) > 0 {
				return errors.New("pass either --tenant or action=count arguments, not both")
			}
			if tenantID == "" && len(args) == 0 {
				return errors.New("pass --tenant or at least one action=count argument")
			}

			var recommended plan.Plan
			if tenantID != "" {
				a, err := c.open(cmd.Context(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer a.Close()

				if recommended, err = a.engine.RecommendPlan(cmd.Context(), tenantID); err != nil {
					return err
				}
			} else {
				snapshot, err := parseSnapshot(args)
				if err != nil {
					return err
				}
				cfg, err := c.loadConfig()
				if err != nil {
					return err
				}
				catalog, err := loadCatalog(cmd.Context(), cfg.PlansFile)
				if err != nil {
					return err
				}
				recommended = catalog.Recommend(snapshot)
			}

			return c.print(cmd, recommended, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "%s\t%s\n", recommended.ID, recommended.Name)
			})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "recommend from this tenant's current usage")
	return cmd
}

func (c *cli) subscriptionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subscription <tenant>",
		Short: "Show a tenant's subscription, provisioning the default plan if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			sub, err := a.engine.GetSubscription(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(cmd, sub, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "TENANT\t%s\n", sub.TenantID)
				fmt.Fprintf(tw, "PLAN\t%s\n", sub.PlanID)
				fmt.Fprintf(tw, "STATUS\t%s\n", sub.Status)
				fmt.Fprintf(tw, "PERIOD\t%s - %s\n",
					sub.CurrentPeriodStart.Format(time.RFC3339), sub.CurrentPeriodEnd.Format(time.RFC3339))
				fmt.Fprintf(tw, "CANCEL AT PERIOD END\t%t\n", sub.CancelAtPeriodEnd)
			})
		},
	}
}

func (c *cli) setPlanCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "set-plan <tenant> <plan>",
		Short: "Move a tenant to another plan",
		Long: "Move a tenant to another plan. Downgrades are refused while current usage " +
			"exceeds the target plan's limits unless --force is set.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, planID := args[0], args[1]

			a, err := c.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if !force {
				sub, err := a.engine.GetSubscription(cmd.Context(), tenantID)
				if err != nil {
					return err
				}
				if sub.IsActive() && a.catalog.IsDowngrade(sub.PlanID, planID) {
					if err := a.engine.CanDowngrade(cmd.Context(), tenantID, planID); err != nil {
						return err
					}
				}
			}

			if err := a.engine.SetSubscriptionPlan(cmd.Context(), tenantID, planID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s moved to %s\n", tenantID, planID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "skip the downgrade usage check")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema for usage counters and subscriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Postgres.ConnectionString == "" {
				return errNoPostgres
			}
			log, err := logger.NewFromConfig(cfg.Log, logger.WithOutput(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := pg.Connect(ctx, cfg.Postgres)
			if err != nil {
				return err
			}
			defer pool.Close()

			db := pg.OpenDB(pool)
			defer db.Close()

			if err := pg.Migrate(ctx, db, cfg.Postgres, log); err != nil {
				return err
			}
			version, err := pg.Version(ctx, db, cfg.Postgres, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quotactl %s (%s)\n", Version, GitCommit)
		},
	}
}

func (c *cli) print(cmd *cobra.Command, v any, table func(*tabwriter.Writer)) error {
	out := cmd.OutOrStdout()
	if c.output == outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func (c *cli) printDecision(cmd *cobra.Command, d quota.Decision) error {
	return c.print(cmd, d, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "ALLOWED\t%t\n", d.Allowed)
		fmt.Fprintf(tw, "PLAN\t%s\n", d.PlanID)
		fmt.Fprintf(tw, "USED\t%d\n", d.CurrentUsage)
		fmt.Fprintf(tw, "LIMIT\t%s\n", formatLimit(d.Limit))
		if d.Reason != "" {
			fmt.Fprintf(tw, "REASON\t%s\n", d.Reason)
		}
	})
}

func formatLimit(n int64) string {
	if n == plan.Unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(n, 10)
}

func parseActions(args []string) ([]plan.Action, error) {
	actions := make([]plan.Action, 0, len(args))
	for _, s := range args {
		a, err := plan.ParseAction(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, s)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// parseActionAmount reads "<action> [amount]"; amount defaults to 1.
func parseActionAmount(args []string) (plan.Action, int64, error) {
	a, err := plan.ParseAction(args[0])
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", err, args[0])
	}
	if len(args) < 2 {
		return a, 1, nil
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return "", 0, fmt.Errorf("%w: amount must be a positive integer, got %q", quota.ErrInvalidRequest, args[1])
	}
	return a, amount, nil
}

// parseSnapshot reads "action=count" pairs.
func parseSnapshot(args []string) (map[plan.Action]int64, error) {
	snapshot := make(map[plan.Action]int64, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected action=count, got %q", arg)
		}
		a, err := plan.ParseAction(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, name)
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("count for %s must be a non-negative integer, got %q", name, value)
		}
		snapshot[a] = n
	}
	return snapshot, nil
}

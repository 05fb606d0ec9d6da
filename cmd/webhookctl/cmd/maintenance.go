package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/refundly/webhooks/internal/app"
	"github.com/refundly/webhooks/internal/infra/postgres"
	"github.com/refundly/webhooks/pkg/migrations"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Republish events whose last failed trial is older than the retry delay",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete events older than the retention window",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	cleanCmd.Flags().Bool("dry-run", false, "Only count the rows that would be deleted")
	cleanCmd.Flags().String("policy", "", "Override retention policy (all, settled)")

	migrateCmd.Flags().Bool("status", false, "Show applied and pending migrations without applying")
}

func runSweep(cmd *cobra.Command, _ []string) (err error) {
	e, err := openEnv(cmd.Context(), envOptions{database: true, broker: true})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()

	svc := app.NewSweepService(
		postgres.NewEventRepository(e.db),
		postgres.NewRefundEventRepository(e.db),
		e.broker,
		declaringRegistrar{broker: e.broker},
		app.SweepServiceConfig{RetryDelay: e.cfg.Webhook.RetryDelay, Concurrency: e.cfg.Webhook.SweepConcurrency},
		e.log,
	)

	result, sweepErr := svc.Sweep(cmd.Context(), time.Now())
	if ok, err := printStructured(result); ok {
		return errors.Join(sweepErr, err)
	}

	t := newTable("VENDOR EVENTS", "VENDORS", "PARTNER EVENTS", "TOTAL")
	t.AddRow(
		strconv.Itoa(result.VendorEvents),
		strconv.Itoa(result.Vendors),
		strconv.Itoa(result.PartnerEvents),
		strconv.Itoa(result.Total()),
	)
	t.Flush()
	return sweepErr
}

func runClean(cmd *cobra.Command, _ []string) (err error) {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	policy, _ := cmd.Flags().GetString("policy")

	e, err := openEnv(cmd.Context(), envOptions{database: true})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()

	if policy == "" {
		policy = e.cfg.Webhook.RetentionPolicy
	}
	if policy != string(app.RetentionAll) && policy != string(app.RetentionSettled) {
		return fmt.Errorf("unknown retention policy %q (all, settled)", policy)
	}

	svc := app.NewRetentionService(
		postgres.NewEventRepository(e.db),
		postgres.NewRefundEventRepository(e.db),
		app.RetentionServiceConfig{
			Retention: e.cfg.Webhook.Retention,
			Policy:    app.RetentionPolicy(policy),
			DryRun:    e.cfg.Webhook.RetentionDryRun,
		},
		e.log,
	)

	clean := svc.Clean
	if dryRun {
		clean = svc.Preview
	}
	result, err := clean(cmd.Context(), time.Now())
	if err != nil {
		return err
	}
	if ok, err := printStructured(result); ok {
		return err
	}

	t := newTable("CUTOFF", "VENDOR EVENTS", "PARTNER EVENTS", "DRY RUN")
	t.AddRow(
		shortTime(&result.Cutoff),
		strconv.FormatInt(result.VendorEvents, 10),
		strconv.FormatInt(result.PartnerEvents, 10),
		boolToStr(result.DryRun),
	)
	t.Flush()
	return nil
}

type migrationStatus struct {
	Applied []migrations.Record `json:"applied" yaml:"applied"`
	Pending []string            `json:"pending" yaml:"pending"`
}

func runMigrate(cmd *cobra.Command, _ []string) (err error) {
	statusOnly, _ := cmd.Flags().GetBool("status")

	e, err := openEnv(cmd.Context(), envOptions{database: true})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()

	runner := migrations.NewRunner(e.db.DB, e.log)
	ctx := cmd.Context()

	if !statusOnly {
		n, err := runner.Up(ctx)
		if err != nil {
			return err
		}
		if flagOutput == outputTable {
			fmt.Fprintf(stdout, "Applied %d migration(s).\n", n)
		}
	}

	if err := runner.EnsureTable(ctx); err != nil {
		return err
	}
	var status migrationStatus
	if status.Applied, err = runner.Applied(ctx); err != nil {
		return err
	}
	if status.Pending, err = runner.Pending(ctx); err != nil {
		return err
	}
	if ok, err := printStructured(status); ok {
		return err
	}

	t := newTable("VERSION", "STATUS", "APPLIED AT")
	for _, r := range status.Applied {
		t.AddRow(r.Version, "applied", shortTime(&r.AppliedAt))
	}
	for _, v := range status.Pending {
		t.AddRow(v, "pending", "-")
	}
	t.Flush()
	return nil
}

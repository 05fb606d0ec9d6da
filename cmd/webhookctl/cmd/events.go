package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/refundly/webhooks/internal/app"
	"github.com/refundly/webhooks/internal/infra/postgres"
	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/domain/webhook"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect vendor webhook events",
}

var eventsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recent vendor events, newest first",
	Args:    cobra.NoArgs,
	RunE:    runEventsList,
}

func init() {
	eventsListCmd.Flags().Int64("vendor", 0, "Only events of this vendor")
	eventsListCmd.Flags().String("sent", "", "Filter by delivery state (true/false)")
	eventsListCmd.Flags().Int("limit", 50, "Maximum number of events")

	eventsCmd.AddCommand(eventsListCmd)
}

type eventRow struct {
	ID             int64      `json:"id" yaml:"id"`
	RefundID       int64      `json:"refund_id" yaml:"refund_id"`
	SubscriptionID int64      `json:"subscription_id" yaml:"subscription_id"`
	Sent           bool       `json:"sent" yaml:"sent"`
	Trials         int        `json:"trials" yaml:"trials"`
	Exhausted      bool       `json:"exhausted" yaml:"exhausted"`
	LastTrialAt    *time.Time `json:"last_trial_at,omitempty" yaml:"last_trial_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at" yaml:"created_at"`
}

func toEventRow(ev *webhook.Event) eventRow {
	return eventRow{
		ID:             ev.ID.Int64(),
		RefundID:       ev.RefundID.Int64(),
		SubscriptionID: ev.SubscriptionID.Int64(),
		Sent:           ev.Sent,
		Trials:         ev.Trials,
		Exhausted:      ev.Exhausted(),
		LastTrialAt:    ev.LastTrialAt,
		CreatedAt:      ev.CreatedAt,
	}
}

func runEventsList(cmd *cobra.Command, _ []string) (err error) {
	input := app.ListEventsInput{}
	if v, _ := cmd.Flags().GetInt64("vendor"); v != 0 {
		if v < 0 {
			return fmt.Errorf("%w: --vendor must be positive", shared.ErrValidation)
		}
		id := shared.ID(v)
		input.VendorID = &id
	}
	if v, _ := cmd.Flags().GetString("sent"); v != "" {
		sent, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New("--sent must be true or false")
		}
		input.Sent = &sent
	}
	input.Limit, _ = cmd.Flags().GetInt("limit")

	e, err := openEnv(cmd.Context(), envOptions{database: true})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()

	events, err := app.NewEventService(postgres.NewEventRepository(e.db)).List(cmd.Context(), input)
	if err != nil {
		return err
	}

	rows := make([]eventRow, len(events))
	for i, ev := range events {
		rows[i] = toEventRow(ev)
	}
	if ok, err := printStructured(rows); ok {
		return err
	}

	if len(rows) == 0 {
		_, err := stdout.Write([]byte("No events found.\n"))
		return err
	}
	t := newTable("ID", "REFUND", "SUBSCRIPTION", "SENT", "TRIALS", "LAST TRIAL", "CREATED")
	for _, r := range rows {
		t.AddRow(
			strconv.FormatInt(r.ID, 10),
			strconv.FormatInt(r.RefundID, 10),
			strconv.FormatInt(r.SubscriptionID, 10),
			boolToStr(r.Sent),
			strconv.Itoa(r.Trials),
			shortTime(r.LastTrialAt),
			shortTime(&r.CreatedAt),
		)
	}
	t.Flush()
	return nil
}

package cmd

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/refundly/webhooks/internal/app"
	"github.com/refundly/webhooks/internal/infra/postgres"
	"github.com/refundly/webhooks/pkg/domain/shared"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Create and publish webhook events for a refund",
}

var notifyVendorCmd = &cobra.Command{
	Use:   "vendor <refundID> <vendorID>",
	Short: "Notify every enabled subscription of a vendor",
	Args:  cobra.ExactArgs(2),
	RunE:  runNotifyVendor,
}

var notifyPartnerCmd = &cobra.Command{
	Use:   "partner <refundID>",
	Short: "Notify the external partner of a refund",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotifyPartner,
}

func init() {
	notifyCmd.AddCommand(notifyVendorCmd)
	notifyCmd.AddCommand(notifyPartnerCmd)
}

type notifyResult struct {
	RefundID  int64 `json:"refund_id" yaml:"refund_id"`
	VendorID  int64 `json:"vendor_id,omitempty" yaml:"vendor_id,omitempty"`
	Published int   `json:"published" yaml:"published"`
	EventID   int64 `json:"event_id,omitempty" yaml:"event_id,omitempty"`
}

func newProducer(e *env) *app.EventProducer {
	return app.NewEventProducer(
		postgres.NewSubscriptionRepository(e.db),
		postgres.NewEventRepository(e.db),
		postgres.NewRefundEventRepository(e.db),
		e.broker,
		declaringRegistrar{broker: e.broker},
		e.log,
	)
}

func runNotifyVendor(cmd *cobra.Command, args []string) (err error) {
	refundID, err := shared.ParseID(args[0])
	if err != nil {
		return err
	}
	vendorID, err := shared.ParseID(args[1])
	if err != nil {
		return err
	}

	e, err := openEnv(cmd.Context(), envOptions{database: true, broker: true})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()

	n, err := newProducer(e).NotifyVendorSubscribers(cmd.Context(), refundID, vendorID)
	if err != nil {
		return err
	}
	return printNotifyResult(notifyResult{RefundID: refundID.Int64(), VendorID: vendorID.Int64(), Published: n})
}

func runNotifyPartner(cmd *cobra.Command, args []string) (err error) {
	refundID, err := shared.ParseID(args[0])
	if err != nil {
		return err
	}

	e, err := openEnv(cmd.Context(), envOptions{database: true, broker: true})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()

	eventID, err := newProducer(e).NotifyExternalPartner(cmd.Context(), refundID)
	if err != nil {
		return err
	}
	return printNotifyResult(notifyResult{RefundID: refundID.Int64(), Published: 1, EventID: eventID.Int64()})
}

func printNotifyResult(res notifyResult) error {
	if ok, err := printStructured(res); ok {
		return err
	}
	t := newTable("REFUND", "VENDOR", "EVENT", "PUBLISHED")
	t.AddRow(
		strconv.FormatInt(res.RefundID, 10),
		idOrDash(res.VendorID),
		idOrDash(res.EventID),
		strconv.Itoa(res.Published),
	)
	t.Flush()
	return nil
}

func idOrDash(id int64) string {
	if id == 0 {
		return "-"
	}
	return strconv.FormatInt(id, 10)
}

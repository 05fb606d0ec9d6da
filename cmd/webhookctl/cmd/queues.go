package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/refundly/webhooks/pkg/domain/webhook"
)

var queuesCmd = &cobra.Command{
	Use:   "queues",
	Short: "Inspect the delivery queues the server restores at startup",
}

var queuesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List declared queue names",
	Args:    cobra.NoArgs,
	RunE:    runQueuesList,
}

var queuesForgetCmd = &cobra.Command{
	Use:   "forget <queue>",
	Short: "Stop restoring a vendor queue on the next server start",
	Long: `forget removes a vendor queue name from the declared set. Vendors still present in
the database keep their queue regardless. The shared partner queue cannot be forgotten.`,
	Args: cobra.ExactArgs(1),
	RunE: runQueuesForget,
}

func init() {
	queuesCmd.AddCommand(queuesListCmd)
	queuesCmd.AddCommand(queuesForgetCmd)
	rootCmd.AddCommand(queuesCmd)
}

type queueRow struct {
	Name     string `json:"name" yaml:"name"`
	VendorID int64  `json:"vendor_id,omitempty" yaml:"vendor_id,omitempty"`
}

func runQueuesList(cmd *cobra.Command, _ []string) (err error) {
	e, err := openEnv(cmd.Context(), envOptions{redis: true})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()

	names, err := e.queues.List(cmd.Context())
	if err != nil {
		return err
	}

	rows := make([]queueRow, len(names))
	for i, name := range names {
		rows[i] = queueRow{Name: name}
		if id, ok := webhook.ParseVendorQueue(name); ok {
			rows[i].VendorID = id.Int64()
		}
	}
	if ok, err := printStructured(rows); ok {
		return err
	}

	t := newTable("QUEUE", "VENDOR")
	for _, r := range rows {
		t.AddRow(r.Name, idOrDash(r.VendorID))
	}
	t.Flush()
	return nil
}

func runQueuesForget(cmd *cobra.Command, args []string) (err error) {
	name := args[0]
	if _, ok := webhook.ParseVendorQueue(name); !ok {
		return fmt.Errorf("%q is not a vendor queue", name)
	}

	e, err := openEnv(cmd.Context(), envOptions{redis: true})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()

	if err := e.queues.Remove(cmd.Context(), name); err != nil {
		return err
	}
	if flagOutput == outputTable {
		fmt.Fprintf(stdout, "Forgot queue %s.\n", name)
	}
	return nil
}

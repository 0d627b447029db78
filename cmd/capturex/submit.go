package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohans/capturex"
)

var (
	submitName    string
	submitContent string
	submitDate    string
	submitSource  string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Enqueue a captured task and print its job id",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateQueue(); err != nil {
			return err
		}
		p := capturex.Payload{
			TaskName:    submitName,
			TaskContent: submitContent,
			Source:      submitSource,
		}
		if submitDate != "" {
			d := capturex.Timestamp(submitDate)
			if _, ok := d.Time(); !ok {
				return fmt.Errorf("--date %q: expected an ISO 8601 date or date-time", submitDate)
			}
			p.TaskDate = &d
		}
		p.ClientTime = capturex.NewTimestamp(time.Now())

		b, err := openBackends(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		client := capturex.NewClient(b.queue, b.store, capturex.ClientOptions{
			RecordTTL: cfg.Store.RecordTTL,
			Logger:    logger,
		})
		id, err := client.Submit(cmd.Context(), p)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <job_id>",
	Short: "Print the status record of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateQueue(); err != nil {
			return err
		}
		b, err := openBackends(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		client := capturex.NewClient(b.queue, b.store, capturex.ClientOptions{Logger: logger})
		rec, err := client.Status(cmd.Context(), args[0])
		if errors.Is(err, capturex.ErrNotFound) {
			return fmt.Errorf("job %s not found or expired", args[0])
		}
		if err != nil {
			return err
		}
		data, err := capturex.MarshalRecord(rec)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitName, "name", "", "task name (required)")
	submitCmd.Flags().StringVar(&submitContent, "content", "", "task content")
	submitCmd.Flags().StringVar(&submitDate, "date", "", "task due date, ISO 8601 (2024-05-02 or 2024-05-02T10:00:00Z)")
	submitCmd.Flags().StringVar(&submitSource, "source", capturex.DefaultSource, "capture source label")
	_ = submitCmd.MarkFlagRequired("name")
}

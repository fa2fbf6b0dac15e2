// Package journalcli provides the "journal" cobra command group for
// cmd/imageworkerctl, grounded on the teacher's internal/cli flow/run
// command structure (client closures, table/JSON Output).
package journalcli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ramirezdev26/swifty-ai-digester/internal/cliutil"
	"github.com/ramirezdev26/swifty-ai-digester/internal/journal"
	"github.com/ramirezdev26/swifty-ai-digester/internal/mq"
)

// NewCmd builds the "journal" command group: list dead-lettered
// entries and manually republish one (spec §3, "Read path").
func NewCmd(journalFn func() (*journal.Journal, func(), error), outputFn func() *cliutil.Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect and replay the dead-letter audit trail",
	}

	cmd.AddCommand(
		newListCmd(journalFn, outputFn),
		newRepublishCmd(journalFn, outputFn),
	)

	return cmd
}

func newListCmd(journalFn func() (*journal.Journal, func(), error), outputFn func() *cliutil.Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead-lettered jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, closeFn, err := journalFn()
			if err != nil {
				return err
			}
			defer closeFn()

			out := outputFn()

			entries, err := j.ListDeadLettered(cmd.Context(), limit)
			if err != nil {
				return err
			}

			headers := []string{"EVENT_ID", "IMAGE_ID", "PARTITION", "ERROR_CODE", "RETRY_COUNT", "RECORDED_AT"}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{
					e.EventID,
					e.ImageID,
					strconv.Itoa(e.Partition),
					string(e.ErrorCode),
					strconv.Itoa(e.RetryCount),
					e.RecordedAt.Format(time.RFC3339),
				}
			}

			out.Print(headers, rows, entries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to list")

	return cmd
}

func newRepublishCmd(journalFn func() (*journal.Journal, func(), error), outputFn func() *cliutil.Output) *cobra.Command {
	var rabbitmqURL string
	var maxRetries int

	cmd := &cobra.Command{
		Use:   "republish IMAGE_ID",
		Short: "Re-publish a dead-lettered job to its original partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imageID := args[0]

			j, closeFn, err := journalFn()
			if err != nil {
				return err
			}
			defer closeFn()

			out := outputFn()
			ctx := cmd.Context()

			entry, err := j.GetByImageID(ctx, imageID)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", imageID, err)
			}

			conn, err := mq.NewConnection(rabbitmqURL, nil)
			if err != nil {
				return fmt.Errorf("connect to bus: %w", err)
			}
			defer conn.Close()

			publisher := mq.NewPublisher(conn, nil)

			// Operator override: reset to the exhausted retryCount, capped
			// again at MAX_RETRIES, so the state machine can retry it
			// instead of immediately routing it back to DLQ on ingress.
			retryCount := entry.RetryCount
			if retryCount > maxRetries {
				retryCount = maxRetries
			}

			if err := publisher.RepublishJob(ctx, entry.Partition, retryCount, entry.OriginalBody); err != nil {
				return fmt.Errorf("republish: %w", err)
			}

			out.Success(fmt.Sprintf("republished %s to partition %d with retryCount=%d", imageID, entry.Partition, retryCount))
			return nil
		},
	}

	cmd.Flags().StringVar(&rabbitmqURL, "rabbitmq-url", mq.DefaultURL(), "RabbitMQ connection URL")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 3, "retry cap to clamp the reset retryCount against")

	return cmd
}

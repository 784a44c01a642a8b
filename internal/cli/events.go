package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Genflow/internal/mq"
)

// NewEventsCmd создаёт команду events: вывод событий run из RabbitMQ.
func NewEventsCmd(appFn func() *App) *cobra.Command {
	var queue string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow run and step events published to RabbitMQ",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()
			if app.Config.RabbitMQURL == "" {
				return errors.New("RABBITMQ_URL is not set")
			}

			conn, err := mq.NewConnection(app.Config.RabbitMQURL, app.Logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := mq.SetupTopology(conn); err != nil {
				return err
			}

			consumer := mq.NewConsumer(conn, app.Logger, mq.ConsumerConfig{
				Queue: queue,
				Handler: func(_ context.Context, msg *mq.Message) error {
					if app.Out.JSONMode() {
						return app.Out.JSON(msg)
					}
					return app.Out.Raw([]byte(fmt.Sprintf("%s  %-14s %s\n",
						msg.Timestamp.Format(time.RFC3339), msg.Type, msg.Payload)))
				},
			})

			err = consumer.Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&queue, "queue", mq.QueueSteps, "Queue to follow ("+mq.QueueRuns+" or "+mq.QueueSteps+")")

	return cmd
}

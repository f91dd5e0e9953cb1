package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"docresearch/src/infrastructure/job"
	"docresearch/src/log"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the ingestion worker",
	Long:  `Start a worker that consumes queued uploads from AMQP and ingests them into the vector store.`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	if !viper.GetBool("amqp.enabled") {
		return errors.New("the worker requires amqp.enabled")
	}
	ctx := cmd.Context()

	a, err := buildApp(ctx, roleWorker)
	if err != nil {
		log.Error(err, "Failed to initialize services")
		return err
	}
	defer a.Close()
	if a.jobs == nil {
		return errors.New("job queue is not configured")
	}

	subscriber, err := job.NewAMQPSubscriber(viper.GetString("amqp.url"), a.wmLogger)
	if err != nil {
		return fmt.Errorf("failed to create subscriber: %w", err)
	}
	defer subscriber.Close()

	a.jobs.RegisterHandler(job.TaskTypeIngest, job.NewIngestTask(a.ingest))

	router, err := job.NewRouter(a.wmLogger, subscriber, a.jobs, job.DefaultRetry)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}

	log.Info("Starting worker...", "topic", a.jobs.Topic())
	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Run(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error(err, "Router stopped")
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down worker...")
	if err := router.Close(); err != nil {
		log.Error(err, "Error closing router")
	}
	<-errCh
	log.Info("Worker stopped")
	return nil
}

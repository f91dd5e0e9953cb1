package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"docresearch/handler/http/api"
	"docresearch/src/log"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the document research API server",
	Long:  `The serve command starts an HTTP server exposing upload, analyze, query and theme endpoints.`,
	RunE:  RunServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func RunServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx, roleServe)
	if err != nil {
		log.Error(err, "Failed to initialize services")
		return err
	}
	defer a.Close()

	gin.SetMode(viper.GetString("server.mode"))

	handler := api.NewHandler(a.ingest, a.query, a.themes, a.docs, a.system, a.jobTracker())
	maxBody := viper.GetInt64("server.max_upload_mb") << 20
	r := api.NewRouter(handler, listValue("server.cors_origins"), maxBody)

	srv := &http.Server{
		Addr:    ":" + viper.GetString("server.port"),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error(err, "Failed to start server")
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	timeout := viper.GetDuration("server.shutdown_timeout")
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Server forced to shutdown")
		return err
	}

	log.Info("Server exited")
	return nil
}

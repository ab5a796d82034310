package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"reconciliation-dashboard/internal/api"
	"reconciliation-dashboard/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard HTTP API",
	Long: `Serve exposes the store over HTTP for the dashboard: transaction CRUD,
trash, statement uploads, ledger import and reconciliation.

Examples:
  reconciler serve --store sqlite --dsn recon.db
  RECONCILER_SERVER_ADDR=:9000 reconciler serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	if !viper.GetBool("verbose") {
		gin.SetMode(gin.ReleaseMode)
	}

	svc, closeStore, err := openService()
	if err != nil {
		return err
	}
	defer closeStore()

	sheets, err := sheetsSource()
	if err != nil {
		return err
	}
	if sheets == nil {
		logger.WithComponent("cli").Warn("No spreadsheet connected, ledger import is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return api.NewServer(svc, sheets, cfg.Server).Run(ctx)
}

// =============================================================================
// Donation Importer - Serve Command
// =============================================================================
//
// COMMAND USAGE:
//   importer serve [--addr :8080]
//
// Serves the HTTP session API until interrupted. Each browser import is one
// session; sessions idle for longer than server.session_ttl are discarded.
//
// =============================================================================

package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP import session API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client, err := newCollector(appConfig, logger)
		if err != nil {
			return err
		}
		newSession, err := sessionFactory(appConfig, client, logger)
		if err != nil {
			return err
		}

		addr := appConfig.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		if !verbose {
			gin.SetMode(gin.ReleaseMode)
		}

		store := server.NewStore(newSession, appConfig.Server.SessionTTL, logger.Named("store"))
		srv := server.New(store, appConfig.Decode.MaxFileSize, logger.Named("http"))

		err = srv.ListenAndServe(ctx, addr)
		logger.Info("session API stopped", zap.Int("open_sessions", store.Len()))
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from server.addr)")
}

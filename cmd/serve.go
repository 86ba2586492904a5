package cmd

import (
	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangasrc/internal/server"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog API and the image relay over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := baseOptions()
		opts.Addr = flagAddr

		a, err := loadApp(opts)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := server.New(server.Options{
			Engine:       a.eng,
			Client:       a.client,
			ImageTimeout: a.cfg.Server.ImageTimeout,
			AllowPrivate: a.cfg.Server.AllowPrivate,
			Debug:        a.cfg.Debug,
			Log:          a.log,
		})

		a.log.Infof("listening on %s (%d sources)", a.cfg.Server.Addr, len(a.eng.Names()))
		return srv.Run(cmd.Context(), a.cfg.Server.Addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (defaults to server.addr)")
	rootCmd.AddCommand(serveCmd)
}

package cli

import (
	"github.com/spf13/cobra"

	"codeberg.org/snonux/sahachari/internal/server"
)

func newServeCommand(r *runner) *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv := server.New(r.svc, server.Options{Debug: debug})
			return srv.Run(cmd.Context(), r.svc.Config().ServerAddr())
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default 127.0.0.1:8080)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Run gin in debug mode")
	_ = r.viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

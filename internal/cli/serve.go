package cli

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/example/ocswarm/internal/wire"
)

// ServeCmd returns the serve command exposing the HTTP API.
func ServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := echo.New()
			e.HideBanner = true
			e.Use(middleware.Recover())
			e.Use(middleware.Logger())

			wire.Handler().RegisterRoutes(e)
			return e.Start(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8840", "listen address")
	return cmd
}

// Package serve exposes bill extraction over HTTP
package serve

import (
	"errors"

	"fjacquet/bill-csv/cmd/root"
	"fjacquet/bill-csv/internal/container"
	"fjacquet/bill-csv/internal/server"

	"github.com/spf13/cobra"
)

var addr string

// Cmd represents the serve command
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve bill extraction over HTTP",
	Long: `Start an HTTP server that accepts PDF bills as a multipart upload.

  POST /extract   files=@bill1.pdf files=@bill2.pdf   -> CSV (or JSON with ?format=json)
  GET  /healthz

Example:
  bill-csv serve --addr :8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appContainer := root.GetContainer()
		if appContainer == nil {
			return errors.New("container not initialized")
		}
		return NewServer(appContainer, addr).ListenAndServe(cmd.Context())
	},
}

func init() {
	Cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
}

// NewServer builds the HTTP server from the container's configuration.
// A non-empty addr overrides server.addr.
func NewServer(c *container.Container, addr string) *server.Server {
	cfg := c.GetConfig()
	if addr == "" {
		addr = cfg.Server.Addr
	}
	return server.New(server.Config{
		Addr:           addr,
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
		Delimiter:      cfg.CSV.DelimiterRune(),
		FileName:       cfg.CSV.FileName,
	}, c.GetAssembler(), c.GetReportGenerator(), c.GetLogger())
}

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/deftio/pocketdock/internal/controlplane"
	"github.com/deftio/pocketdock/internal/sshgateway"
)

var serveOpts struct {
	addr        string
	ssh         bool
	sshAddr     string
	sshHostKey  string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP+WebSocket control surface (and optionally an SSH gateway)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		cp := controlplane.New(a.mgr)
		errCh := make(chan error, 2)
		go func() { errCh <- cp.Start(serveOpts.addr) }()

		var gw *sshgateway.Gateway
		if serveOpts.ssh {
			gw, err = sshgateway.New(a.mgr, serveOpts.sshAddr, serveOpts.sshHostKey)
			if err != nil {
				return err
			}
			go func() { errCh <- gw.ListenAndServe() }()
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
		}

		if err := cp.Shutdown(5 * time.Second); err != nil {
			fmt.Fprintln(os.Stderr, "controlplane shutdown:", err)
		}
		if gw != nil {
			gw.Close()
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveOpts.addr, "addr", "127.0.0.1:7777", "Address for the HTTP+WebSocket control surface")
	serveCmd.Flags().BoolVar(&serveOpts.ssh, "ssh", false, "Also run the SSH gateway onto sandbox sessions")
	serveCmd.Flags().StringVar(&serveOpts.sshAddr, "ssh-addr", "127.0.0.1:2222", "Address for the SSH gateway")
	serveCmd.Flags().StringVar(&serveOpts.sshHostKey, "ssh-host-key", "", "Path to the SSH gateway's host key (default: generate one under the working directory)")
	RootCmd.AddCommand(serveCmd)
}

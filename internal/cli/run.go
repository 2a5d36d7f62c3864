package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hashplane-network/hashplane/internal/agent"
	"github.com/hashplane-network/hashplane/internal/api"
)

func init() {
	runCmd.Flags().StringVar(&runStatusAddr, "status-addr", "", "Status server address (overrides config)")
	rootCmd.AddCommand(runCmd)
}

var runStatusAddr string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the worker agent",
	Long: `Start both worker loops (share mining and inference jobs) and the
local status server. Runs until interrupted.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := agent.Load()
	if err != nil {
		return err
	}
	if runStatusAddr != "" {
		cfg.API.Addr = runStatusAddr
	}

	a := agent.New(cfg, agent.Home())
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Status server runs alongside the loops; a bind failure there is not
	// fatal to the agent itself.
	srv := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      api.NewServer(a).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[cli] status server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("[cli] shutting down")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("hashplane agent running (status: http://%s)\n", cfg.API.Addr)
	a.Run(ctx)
	return nil
}

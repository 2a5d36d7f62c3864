package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hashplane-network/hashplane/internal/agent"
)

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "Status server address of the running agent")
	rootCmd.AddCommand(statusCmd)
}

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running agent's status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr := statusAddr
	if addr == "" {
		cfg, err := agent.Load()
		if err != nil {
			return err
		}
		addr = cfg.API.Addr
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/api/status")
	if err != nil {
		return fmt.Errorf("is the agent running? %w", err)
	}
	defer resp.Body.Close()

	var snap agent.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Wallet:\t%s\n", snap.Wallet)
	fmt.Fprintf(w, "Host:\t%s\n", snap.HostID)
	fmt.Fprintf(w, "Device:\t%s\n", snap.DeviceID)
	if snap.GPUModel != "" {
		fmt.Fprintf(w, "GPU:\t%s\n", snap.GPUModel)
	}
	fmt.Fprintf(w, "Miner:\t%s\n", snap.MinerState)
	fmt.Fprintf(w, "Jobs:\t%s\n", snap.JobsState)
	fmt.Fprintf(w, "Shares (this run):\t%d\n", snap.SharesSubmitted)
	fmt.Fprintf(w, "Shares (coordinator):\t%d\n", snap.CoordinatorTotal)
	fmt.Fprintf(w, "Jobs completed/failed:\t%d/%d\n", snap.JobsCompleted, snap.JobsFailed)
	if !snap.LastShareAt.IsZero() {
		fmt.Fprintf(w, "Last share:\t%s\n", snap.LastShareAt.Format(time.RFC3339))
	}
	return w.Flush()
}

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"invoicewatch/internal/logger"
)

var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Ask the invoicing server to re-scan its invoice sources",
	RunE:  runRescan,
}

func init() {
	rootCmd.AddCommand(rescanCmd)

	rescanCmd.Flags().Duration("timeout", 30*time.Second, "Request timeout")
}

func runRescan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("rescan")

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := createContext(timeout, log)
	defer cancel()

	client, err := newClient(log)
	if err != nil {
		return err
	}
	if err := client.Rescan(ctx); err != nil {
		return err
	}

	log.Info().Msg("Rescan requested")
	fmt.Println("Rescan requested.")
	return nil
}

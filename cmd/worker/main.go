package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alex-ozdemir/raylet/pkg/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "worker",
	Short: "Ephemeral render worker for a distributed ray-tracing render",
	Long: `worker registers with a coordinator, fetches the scene geometry it
is assigned, traces and shades the rays routed to it, and forwards rays
that cross into geometry another worker holds.`,
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("coordinator", "", "coordinator TCP address, host:port (required)")
	flags.String("ip", "0.0.0.0", "address this worker's UDP endpoint binds to")
	flags.Int("port", 0, "UDP port to bind; 0 picks an ephemeral port")
	flags.String("storage-backend", "", "base URL of the S3-compatible object store")
	flags.String("finished-rays", "forward", "finished-ray policy: forward or discard")
	flags.Bool("reliable-udp", true, "use reliable delivery for peer ray traffic")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Bool("log-json", false, "emit structured JSON logs instead of console output")
	_ = rootCmd.MarkFlagRequired("coordinator")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log.Init(log.Config{Level: log.Level(cfg.logLevel), JSONOutput: cfg.logJSON})

	return runWorker(cfg)
}

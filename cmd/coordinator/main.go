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
	Use:   "coordinator",
	Short: "Coordinator process for a distributed ray-tracing render",
	Long: `coordinator launches and tracks a fleet of render workers, assigns
each one a spatial tile and a slice of scene geometry, brokers peer
discovery between workers, and accumulates their finished samples into
the output image.`,
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("scene-path", "", "path to the scene manifest (required)")
	flags.String("data-dir", "", "directory to persist/rehydrate the scene registry across restarts; empty disables persistence")
	flags.String("ip", "0.0.0.0", "address to bind the TCP and UDP listeners on")
	flags.Int("port", 9000, "TCP port workers register on; UDP binds to port+1")
	flags.String("storage-backend", "", "base URL of the S3-compatible object store")
	flags.String("invoke-endpoint", "", "function-invocation endpoint to launch workers on; empty means workers are started externally")
	flags.Int("lambdas", 1, "number of workers this render expects")
	flags.String("assignment", "uniform", "treelet assignment mode: uniform, static, or dynamic")
	flags.Bool("complete", false, "connect every worker to every other worker on startup")
	flags.Bool("diagnostics", false, "broadcast RequestDiagnostics and wait before shutting down")
	flags.String("output", "output.pfm", "path the accumulated image is written to")
	flags.Int("width", 1280, "output image width in pixels")
	flags.Int("height", 720, "output image height in pixels")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Bool("log-json", false, "emit structured JSON logs instead of console output")
	_ = rootCmd.MarkFlagRequired("scene-path")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log.Init(log.Config{Level: log.Level(cfg.logLevel), JSONOutput: cfg.logJSON})

	return runCoordinator(cfg)
}

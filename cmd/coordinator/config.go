package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alex-ozdemir/raylet/pkg/types"
)

type config struct {
	scenePath       string
	dataDir         string
	ip              string
	tcpPort         int
	storageBackend  string
	invokeEndpoint  string
	numberOfWorkers uint32
	assignmentMode  types.AssignmentMode
	complete        bool
	diagnostics     bool
	outputPath      string
	width, height   int
	logLevel        string
	logJSON         bool
}

func loadConfig(cmd *cobra.Command) (config, error) {
	flags := cmd.Flags()

	scenePath, _ := flags.GetString("scene-path")
	dataDir, _ := flags.GetString("data-dir")
	ip, _ := flags.GetString("ip")
	port, _ := flags.GetInt("port")
	storageBackend, _ := flags.GetString("storage-backend")
	invokeEndpoint, _ := flags.GetString("invoke-endpoint")
	lambdas, _ := flags.GetInt("lambdas")
	assignment, _ := flags.GetString("assignment")
	complete, _ := flags.GetBool("complete")
	diagnostics, _ := flags.GetBool("diagnostics")
	output, _ := flags.GetString("output")
	width, _ := flags.GetInt("width")
	height, _ := flags.GetInt("height")
	logLevel, _ := flags.GetString("log-level")
	logJSON, _ := flags.GetBool("log-json")

	mode := types.AssignmentMode(assignment)
	switch mode {
	case types.AssignmentUniform, types.AssignmentStatic, types.AssignmentDynamic:
	default:
		return config{}, fmt.Errorf("invalid --assignment %q: must be uniform, static, or dynamic", assignment)
	}

	return config{
		scenePath:       scenePath,
		dataDir:         dataDir,
		ip:              ip,
		tcpPort:         port,
		storageBackend:  storageBackend,
		invokeEndpoint:  invokeEndpoint,
		numberOfWorkers: uint32(lambdas),
		assignmentMode:  mode,
		complete:        complete,
		diagnostics:     diagnostics,
		outputPath:      output,
		width:           width,
		height:          height,
		logLevel:        logLevel,
		logJSON:         logJSON,
	}, nil
}

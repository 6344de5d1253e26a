package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alex-ozdemir/raylet/pkg/types"
)

type config struct {
	coordinatorAddr string
	ip              string
	port            int
	storageBackend  string
	finishedPolicy  types.FinishedRaysPolicy
	reliableUDP     bool
	logLevel        string
	logJSON         bool
}

func loadConfig(cmd *cobra.Command) (config, error) {
	flags := cmd.Flags()

	coordinatorAddr, _ := flags.GetString("coordinator")
	ip, _ := flags.GetString("ip")
	port, _ := flags.GetInt("port")
	storageBackend, _ := flags.GetString("storage-backend")
	finishedRays, _ := flags.GetString("finished-rays")
	reliableUDP, _ := flags.GetBool("reliable-udp")
	logLevel, _ := flags.GetString("log-level")
	logJSON, _ := flags.GetBool("log-json")

	var policy types.FinishedRaysPolicy
	switch finishedRays {
	case "forward":
		policy = types.FinishedRaysForward
	case "discard":
		policy = types.FinishedRaysDiscard
	default:
		return config{}, fmt.Errorf("invalid --finished-rays %q: must be forward or discard", finishedRays)
	}

	return config{
		coordinatorAddr: coordinatorAddr,
		ip:              ip,
		port:            port,
		storageBackend:  storageBackend,
		finishedPolicy:  policy,
		reliableUDP:     reliableUDP,
		logLevel:        logLevel,
		logJSON:         logJSON,
	}, nil
}

package main

import "github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/sentinel"

// runSentinel supervises a "teamsync-server run" child, restarting it on
// crash or when the binary is replaced on disk.
func runSentinel() {
	sentinel.Run("run")
}

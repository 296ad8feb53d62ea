package stress

import (
	"fmt"
	"strconv"
	"time"
)

// Mode selects the binary started inside the target
type Mode string

const (
	// ModeStressNG runs stress-ng under timeout -s KILL
	ModeStressNG Mode = "stress-ng"
	// ModeHelper runs the chaos-runner stress subcommand shipped into the target
	ModeHelper Mode = "helper"
)

// killGrace is how long past the deadline timeout waits before SIGKILL
const killGrace = 5 * time.Second

// Command returns the command starting a workload that ends on its own after d
func Command(mode Mode, helperPath string, d time.Duration, cpuWorkers, memoryMB int) []string {
	seconds := int(d.Seconds() + 0.5)
	if seconds < 1 {
		seconds = 1
	}
	if mode == ModeHelper {
		if helperPath == "" {
			helperPath = "chaos-runner"
		}
		until := time.Now().Add(time.Duration(seconds) * time.Second).UTC().Format(time.RFC3339)
		return []string{
			"timeout", "-s", "KILL", strconv.Itoa(seconds + int(killGrace.Seconds())),
			helperPath, "stress",
			"--until", until,
			"--cpu", strconv.Itoa(cpuWorkers),
			"--memory-mb", strconv.Itoa(memoryMB),
		}
	}
	cmd := []string{
		"timeout", "-s", "KILL", strconv.Itoa(seconds + int(killGrace.Seconds())),
		"stress-ng",
		"--cpu", strconv.Itoa(cpuWorkers),
	}
	if memoryMB > 0 {
		cmd = append(cmd, "--vm", "1", "--vm-bytes", fmt.Sprintf("%dM", memoryMB))
	}
	return append(cmd, "--timeout", fmt.Sprintf("%ds", seconds))
}

// KillCommand returns the command killing every workload started by Command
func KillCommand(mode Mode, helperPath string) []string {
	if mode == ModeHelper {
		if helperPath == "" {
			helperPath = "chaos-runner"
		}
		return []string{"pkill", "-9", "-f", helperPath + " stress"}
	}
	return []string{"pkill", "-9", "-f", "stress-ng"}
}

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shuttle/internal/daemonctl"
	"shuttle/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the shuttle daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the shuttle daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			} else {
				fmt.Fprintln(stdout, "Stopping transfer loop...")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the shuttle daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintln(stdout, "Daemon restarted")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and transfer status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				renderStatus(cmd, resp)
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func renderStatus(cmd *cobra.Command, resp *ipc.StatusResponse) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	runningKind := statusError
	runningDetail := "not running"
	if resp.Running {
		runningKind = statusOK
		runningDetail = fmt.Sprintf("pid %d", resp.PID)
	}
	fmt.Fprintln(stdout, renderStatusLine("Running", runningKind, runningDetail, colorize))
	if !resp.Heartbeat.IsZero() {
		fmt.Fprintln(stdout, renderStatusLine("Last heartbeat", statusInfo,
			humanize.Time(resp.Heartbeat), colorize))
	}
	fmt.Fprintln(stdout, renderStatusLine("Clean shutdown", statusInfo, yesNo(resp.CleanShutdown), colorize))

	fmt.Fprintln(stdout)
	for _, line := range renderSectionHeader("Transfer", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if resp.Suspended {
		fmt.Fprintln(stdout, renderStatusLine("Suspended", statusWarn, resp.SuspendReason, colorize))
	}
	if resp.TransferInProgress {
		fmt.Fprintln(stdout, renderStatusLine("In progress", statusOK,
			fmt.Sprintf("%s -> %s", resp.TransferSource, resp.TransferUser), colorize))
		fmt.Fprintln(stdout, renderStatusLine("Progress", statusInfo,
			fmt.Sprintf("%.1f%% (%s of %s)", resp.PercentComplete,
				humanize.IBytes(uint64(resp.BytesCompleted)),
				humanize.IBytes(uint64(resp.TransferSize))), colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("In progress", statusInfo, "no", colorize))
	}

	if summary := strings.TrimSpace(resp.StorageSummary); summary != "" {
		fmt.Fprintln(stdout)
		for _, line := range renderSectionHeader("Storage", colorize) {
			fmt.Fprintln(stdout, line)
		}
		for _, line := range strings.Split(summary, "\n") {
			fmt.Fprintln(stdout, statusIndent+line)
		}
	}
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}

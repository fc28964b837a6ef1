package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// newStackCmd groups the developer workflows around the docker compose stack
// (postgres, redis, minio, api, worker).
func newStackCmd() *cobra.Command {
	var composeFile string
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Manage the local docker compose stack",
	}
	cmd.PersistentFlags().StringVar(&composeFile, "compose-file", "docker-compose.yml", "Compose file to use for stack commands")
	compose := func(args ...string) []string {
		return append([]string{"compose", "-f", composeFile}, args...)
	}
	cmd.AddCommand(
		newBuildCmd(compose),
		newUpCmd(compose),
		newDownCmd(compose),
		newLogsCmd(compose),
		newTestCmd(),
		newRunCmd(),
	)
	return cmd
}

type composeArgs func(args ...string) []string

func newBuildCmd(compose composeArgs) *cobra.Command {
	var noCache bool
	cmd := &cobra.Command{
		Use:   "build [service...]",
		Short: "Build Docker images via docker compose",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := compose("build")
			if noCache {
				a = append(a, "--no-cache")
			}
			return run(cmd.Context(), "docker", append(a, args...)...)
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable Docker build cache")
	return cmd
}

func newUpCmd(compose composeArgs) *cobra.Command {
	var detach, skipBuild bool
	cmd := &cobra.Command{
		Use:   "up [service...]",
		Short: "Start the full docker compose stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := compose("up")
			if !skipBuild {
				a = append(a, "--build")
			}
			if detach {
				a = append(a, "-d")
			}
			return run(cmd.Context(), "docker", append(a, args...)...)
		},
	}
	cmd.Flags().BoolVarP(&detach, "detached", "d", true, "Run docker compose in detached mode")
	cmd.Flags().BoolVar(&skipBuild, "skip-build", false, "Skip rebuilding images before starting")
	return cmd
}

func newDownCmd(compose composeArgs) *cobra.Command {
	var removeVolumes bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop the docker compose stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := compose("down")
			if removeVolumes {
				a = append(a, "-v")
			}
			return run(cmd.Context(), "docker", a...)
		},
	}
	cmd.Flags().BoolVarP(&removeVolumes, "volumes", "v", false, "Remove stack volumes")
	return cmd
}

func newLogsCmd(compose composeArgs) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs [service...]",
		Short: "Tail logs from docker compose services",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := compose("logs")
			if follow {
				a = append(a, "-f")
			}
			return run(cmd.Context(), "docker", append(a, args...)...)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream logs continuously")
	return cmd
}

func newTestCmd() *cobra.Command {
	var race, cover bool
	cmd := &cobra.Command{
		Use:   "test [packages]",
		Short: "Run Go tests (defaults to ./...)",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs := args
			if len(pkgs) == 0 {
				pkgs = []string{"./..."}
			}
			goArgs := []string{"test"}
			if race {
				goArgs = append(goArgs, "-race")
			}
			if cover {
				goArgs = append(goArgs, "-cover")
			}
			return run(cmd.Context(), "go", append(goArgs, pkgs...)...)
		},
	}
	cmd.Flags().BoolVar(&race, "race", false, "Enable Go race detector")
	cmd.Flags().BoolVar(&cover, "cover", false, "Collect coverage data")
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run individual Go binaries directly",
	}
	cmd.AddCommand(
		newServiceRunner("server", "./cmd/server"),
		newServiceRunner("worker", "./cmd/worker"),
	)
	return cmd
}

func newServiceRunner(name, path string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("go run %s", path),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), "go", append([]string{"run", path}, args...)...)
		},
	}
}

// run executes external tools for the stack commands; tests replace it.
var run = runCommand

func runCommand(ctx context.Context, name string, args ...string) error {
	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	return execCmd.Run()
}

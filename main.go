package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const (
	AppName    = "benchsuite"
	AppSummary = "Runs hackbench, pipebench and callbench and relays their output"
	AppSource  = "https://github.com/iamlooper/BenchSuite"
)

var config = ConfigFromEnv()

var rootCmd = &cobra.Command{
	Use:           AppName,
	Short:         AppSummary,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			SetLogLevel(level)
		}
	},
}

var runCmd = &cobra.Command{
	Use:       "run <hackbench|pipebench|callbench|all>",
	Short:     "Run one benchmark or all of them sequentially",
	Args:      cobra.ExactArgs(1),
	ValidArgs: append(DefaultRegistry().Names(), TargetAll),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		system := NewSystem(config, DefaultRegistry(), nil)
		if err := system.OpenStorage(); err != nil {
			return err
		}
		defer system.Close()

		display, err := system.Run(ctx, RunRequest{Target: args[0]}, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if failed := display.Failed(); len(failed) > 0 {
			return fmt.Errorf("benchmarks exited with non-zero code: %v", strings.Join(failed, ", "))
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available benchmarks",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Name", "Type", "Arguments", "Summary"})
		table.SetAutoWrapText(false)
		for _, spec := range DefaultRegistry().All() {
			table.Append([]string{spec.Name, spec.Kind, strings.Join(spec.Args, " "), spec.Summary})
		}
		table.Render()
		return nil
	},
}

var aboutCmd = &cobra.Command{
	Use:   "about",
	Short: "Show application, host and executable details",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		info := HostStat()
		fmt.Fprintf(out, "%v %v\n%v\n%v\n\n", AppName, Version, AppSummary, AppSource)

		host := tablewriter.NewWriter(out)
		host.SetHeader([]string{"Host", "Value"})
		host.AppendBulk([][]string{
			{"hostname", info.Hostname},
			{"platform", info.Platform},
			{"kernel", info.Kernel},
			{"arch", info.Arch},
			{"cpu", strconv.Itoa(info.CPUCount)},
			{"freq", fmt.Sprintf("%.0f", info.CPUFreq)},
			{"ram", fmt.Sprintf("%.1f GiB", info.RAM)},
		})
		host.Render()

		resolver := &DirResolver{Dir: config.BinDir}
		executables := tablewriter.NewWriter(out)
		executables.SetHeader([]string{"Benchmark", "Executable", "Source"})
		executables.SetAutoWrapText(false)
		for _, spec := range DefaultRegistry().All() {
			path, err := resolver.ExecutablePath(spec)
			if err != nil {
				path = err.Error()
			}
			executables.Append([]string{spec.Name, path, spec.Source})
		}
		executables.Render()
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded runs, or the transcript of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		system := NewSystem(config, DefaultRegistry(), nil)
		if err := system.OpenStorage(); err != nil {
			return err
		}
		defer system.Close()
		if system.DB() == nil {
			return fmt.Errorf("no database configured, set BENCHSUITE_DB_URL or --db-url")
		}

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			events, err := system.Storage().RunEvents(system.DB(), args[0])
			if err != nil {
				return fmt.Errorf("unable to load run %v: %w", args[0], err)
			}
			for _, event := range events {
				fmt.Fprintln(out, event.Text)
			}
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := system.Storage().ListRuns(system.DB(), limit)
		if err != nil {
			return fmt.Errorf("unable to list runs: %w", err)
		}
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Run", "Target", "Started", "Finished", "Status"})
		for _, run := range runs {
			table.Append([]string{run.Id, run.Target, run.Started, run.Finished, run.Status})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR), overrides LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&config.BinDir, "bin-dir", config.BinDir, "directory with benchmark executables")
	rootCmd.PersistentFlags().StringVar(&config.DbUrl, "db-url", config.DbUrl, "database for run transcripts (file:... or libsql://...)")
	rootCmd.PersistentFlags().StringVar(&config.DbName, "db-name", config.DbName, "Turso database for run transcripts")

	runCmd.Flags().BoolVar(&config.CaptureStderr, "stderr", config.CaptureStderr, "stream benchmark stderr as diagnostic lines")
	runCmd.Flags().BoolVar(&config.ContinueOnFailure, "continue-on-failure", config.ContinueOnFailure, "skip benchmarks that cannot be launched")
	runCmd.Flags().DurationVar(&config.Timeout, "timeout", config.Timeout, "limit for a single benchmark, 0 disables it")

	historyCmd.Flags().Int("limit", 20, "number of runs to show")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(aboutCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		Logger.Errorf("%v", err)
		os.Exit(1)
	}
}

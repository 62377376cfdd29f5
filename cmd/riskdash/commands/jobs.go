package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// jobsCmd represents the jobs command
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect or run scheduled jobs",
	Long: `Lists the scheduled jobs or runs one immediately.

Subcommands:
  list  - registered jobs and their schedules
  run   - run one job now and print its result

Example:
  go run ./cmd/riskdash jobs list
  go run ./cmd/riskdash jobs run history_refresh`,
}

var (
	jobsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	jobsRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run a job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runJobNow,
	}
)

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsRunCmd)
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := a.newScheduler()
	if err != nil {
		return err
	}

	stats := sched.GetJobStats()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Registered jobs:")
	for _, name := range sched.GetAllJobs() {
		fmt.Fprintf(out, "  - %-16s %s\n", name, stats[name].Schedule)
	}
	return nil
}

func runJobNow(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := a.newScheduler()
	if err != nil {
		return err
	}

	if err := sched.RunJob(jobName); err != nil {
		return err
	}
	sched.Wait()

	history, err := sched.GetJobHistory(jobName)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return fmt.Errorf("job %s produced no result", jobName)
	}

	res := history[len(history)-1]
	out := cmd.OutOrStdout()
	if !res.Success {
		fmt.Fprintf(out, "❌ %s failed after %d attempt(s) in %s: %s\n", jobName, res.Attempts, res.Duration, res.Error)
		return fmt.Errorf("job %s failed", jobName)
	}
	fmt.Fprintf(out, "✅ %s completed in %s\n", jobName, res.Duration)
	return nil
}

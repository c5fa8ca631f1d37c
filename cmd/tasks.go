package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage background tasks of the server",
}

var tasksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all background tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Retrieving tasks...")
		list, correlation, err := cli.ListTasks(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to list tasks")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Name", "Schedule", "State", "Last Run", "Next Run", "Last Result"})

		for _, task := range list {
			state := "idle"
			if task.Running {
				state = color.BlueString("running")
			}

			schedule := task.Schedule
			if schedule == "" {
				schedule = faint("manual")
			}

			lastRun := "never"
			if !task.LastRun.IsZero() {
				lastRun = time.Since(task.LastRun).Round(time.Second).String() + " ago"
			}

			nextRun := "n/a"
			if !task.NextRun.IsZero() {
				nextRun = "in " + time.Until(task.NextRun).Round(time.Second).String()
			}

			prefix := ""
			if task.LastResult == "success" {
				prefix = greenCheck
			} else if task.LastResult != "" {
				prefix = redCross
			}

			t.AppendRow(table.Row{
				bold(task.Name),
				schedule,
				state,
				lastRun,
				nextRun,
				prefix + " " + task.LastResult,
			})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

var tasksTriggerCmd = &cobra.Command{
	Use:   "trigger NAME",
	Short: "Manually trigger a background task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msgf("Triggering task '%s'...", name)
		if correlation, err := cli.TriggerTask(cmd.Context(), name); err != nil {
			return logError(err, correlation, "failed to trigger task")
		}

		log.Info().Msgf("%s triggered task '%s' successfully.", greenCheck, bold(name))
		log.Info().Msgf("Run '%s' to see progress.", color.CyanString("linkgate tasks logs "+name))
		return nil
	},
}

var tasksLogsCmd = &cobra.Command{
	Use:   "logs NAME",
	Short: "See logs of a background task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msgf("Retrieving logs for task '%s'...", name)
		logs, correlation, err := cli.GetTaskLogs(cmd.Context(), name)
		if err != nil {
			return logError(err, correlation, "failed to retrieve task logs")
		}

		log.Info().Msgf("Logs for task '%s':", name)
		fmt.Println("----------------------------------------")
		for _, entry := range logs {
			var level string
			switch entry.Level {
			case "info":
				level = color.GreenString("inf")
			case "warn":
				level = color.YellowString("wrn")
			case "error":
				level = color.RedString("err")
			case "debug":
				level = faint("dbg")
			default:
				level = entry.Level
			}
			fmt.Printf("%s | %s | %s\n", entry.Time.Format("15:04:05"), level, entry.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksListCmd, tasksTriggerCmd, tasksLogsCmd)
}

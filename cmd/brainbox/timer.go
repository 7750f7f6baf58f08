package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brainbox-app/brainbox/internal/models"
	"github.com/brainbox-app/brainbox/internal/planner"
)

var minutesFlag int

var timerCmd = &cobra.Command{
	Use:     "timer [task-id]",
	GroupID: "study",
	Short:   "Run a study countdown",
	Long: `Run a countdown for a study session. With a task id the timer is
labelled with that task's subject.`,
	Example: `  brainbox timer --minutes 25`,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if minutesFlag <= 0 {
			return fmt.Errorf("--minutes must be positive")
		}
		label := "Study session"
		if len(args) == 1 {
			eng, _, err := newEngine()
			if err != nil {
				return err
			}
			snap, err := eng.List(cmd.Context(), models.KindTask, nil)
			if err != nil {
				return err
			}
			ent, ok := snap.Find(args[0])
			if !ok {
				return fmt.Errorf("no task %s", args[0])
			}
			label = ent.(*models.Task).Subject
		}

		out := cmd.OutOrStdout()
		t := planner.NewTimer(time.Duration(minutesFlag) * time.Minute)
		fmt.Fprintf(out, "%s: %d minutes\n", titleStyle.Render(label), minutesFlag)
		err := t.Run(cmd.Context(), time.Second, func(left time.Duration) {
			fmt.Fprintf(out, "\r%s ", formatClock(left))
		})
		fmt.Fprintln(out)
		if errors.Is(err, context.Canceled) {
			fmt.Fprintf(out, "Stopped with %s left.\n", formatClock(t.Remaining()))
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, goodStyle.Render("Time's up."))
		return nil
	},
}

func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func init() {
	timerCmd.Flags().IntVarP(&minutesFlag, "minutes", "m", 25, "countdown length in minutes")
	rootCmd.AddCommand(timerCmd)
}

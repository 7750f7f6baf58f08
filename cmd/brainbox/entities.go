package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brainbox-app/brainbox/internal/models"
	"github.com/brainbox-app/brainbox/internal/mutation"
)

var kindAliases = map[string]models.Kind{
	"post": models.KindPost, "saved": models.KindSavedPost, "saved-post": models.KindSavedPost,
	"schedule": models.KindSchedule, "class": models.KindSchedule, "classes": models.KindSchedule,
	"transaction": models.KindTransaction, "budget": models.KindTransaction, "tx": models.KindTransaction,
	"task": models.KindTask, "skill": models.KindSkill,
	"exam": models.KindExamRoutine, "exams": models.KindExamRoutine, "exam-routine": models.KindExamRoutine,
}

func parseKind(s string) (models.Kind, error) {
	if k, ok := kindAliases[strings.ToLower(s)]; ok {
		return k, nil
	}
	return models.ParseKind(strings.ToLower(s))
}

func kindNames() string {
	names := make([]string, 0, len(models.Kinds()))
	for _, k := range models.Kinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}

var (
	whereFlag []string
	setFlag   []string
)

var listCmd = &cobra.Command{
	Use:     "list <kind>",
	Aliases: []string{"ls"},
	GroupID: "data",
	Short:   "List your classes, transactions, tasks, skills, exams, posts or saved posts",
	Long: `List your entities of one kind.

Kinds: ` + kindNames() + `

Examples:
  brainbox list tasks
  brainbox list exams --where status=pending
  brainbox list schedules --where day=Monday -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		filter, err := parseFilter(whereFlag, timeNow())
		if err != nil {
			return err
		}
		eng, _, err := newEngine()
		if err != nil {
			return err
		}
		snap, err := eng.List(cmd.Context(), kind, filter)
		if err != nil {
			return err
		}
		return renderEntities(cmd.OutOrStdout(), kind, snap.Entities)
	},
}

var addCmd = &cobra.Command{
	Use:     "add <kind> --set field=value...",
	GroupID: "data",
	Short:   "Create an entity",
	Long: `Create an entity from field assignments.

Dates accept YYYY-MM-DD or phrases like "tomorrow" or "next friday".

Examples:
  brainbox add tasks --set subject=Physics --set priority=High --set deadline="next friday" --set estimatedHours=6
  brainbox add transactions --set kind=expense --set category=Food --set amount=12.50 --set date=today
  brainbox add schedules --set subject=Calculus --set code=MATH201 --set day=Monday --set timeRange="09:00-10:30" --set room=4B --set instructor="Dr. Rahman"
  brainbox add posts --set category="Study Tips" --set message="Pomodoro works"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		fields, err := parseAssignments(setFlag, timeNow())
		if err != nil {
			return err
		}
		entity, err := buildEntity(kind, fields)
		if err != nil {
			return err
		}
		eng, _, err := newEngine()
		if err != nil {
			return err
		}
		created, err := eng.Add(cmd.Context(), entity)
		if err != nil {
			return err
		}
		return renderEntities(cmd.OutOrStdout(), kind, []models.Entity{created})
	},
}

var editCmd = &cobra.Command{
	Use:     "edit <kind> <id> --set field=value...",
	GroupID: "data",
	Short:   "Change fields of an entity",
	Example: `  brainbox edit skills 3f2a... --set progressPercent=60 --set milestone="Finished chapter 4"`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		fields, err := parseAssignments(setFlag, timeNow())
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return fmt.Errorf("nothing to change (use --set field=value)")
		}
		eng, _, err := newEngine()
		if err != nil {
			return err
		}
		updated, err := eng.Edit(cmd.Context(), kind, args[1], models.Patch(fields))
		if err != nil {
			return err
		}
		return renderEntities(cmd.OutOrStdout(), kind, []models.Entity{updated})
	},
}

var removeCmd = &cobra.Command{
	Use:     "rm <kind> <id>",
	Aliases: []string{"delete", "remove"},
	GroupID: "data",
	Short:   "Delete an entity (asks for confirmation unless --yes)",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		eng, _, err := newEngine()
		if err != nil {
			return err
		}
		err = eng.Remove(cmd.Context(), kind, args[1])
		if errors.Is(err, mutation.ErrDeclined) {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s.\n", kind, args[1])
		return nil
	},
}

var doneCmd = &cobra.Command{
	Use:     "done <tasks|skills|exams> <id>",
	GroupID: "data",
	Short:   "Toggle the completed state of a task, skill or exam",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		eng, _, err := newEngine()
		if err != nil {
			return err
		}
		// The toggle projects onto the loaded list.
		if _, err := eng.List(cmd.Context(), kind, nil); err != nil {
			return err
		}
		updated, err := eng.ToggleDone(cmd.Context(), kind, args[1])
		if err != nil {
			return err
		}
		return renderEntities(cmd.OutOrStdout(), kind, []models.Entity{updated})
	},
}

func init() {
	listCmd.Flags().StringArrayVarP(&whereFlag, "where", "w", nil, "filter field=value (repeatable)")
	for _, c := range []*cobra.Command{addCmd, editCmd} {
		c.Flags().StringArrayVarP(&setFlag, "set", "s", nil, "field=value (repeatable)")
	}
	rootCmd.AddCommand(listCmd, addCmd, editCmd, removeCmd, doneCmd)
}

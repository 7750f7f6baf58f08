package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/brainbox-app/brainbox/internal/assistant"
)

var (
	subjectFlag    string
	typeFlag       string
	difficultyFlag string
	countFlag      int
	feedbackFlag   bool
)

func newAssistant() (*assistant.Assistant, error) {
	if cfg.Assistant.APIKey == "" {
		return nil, fmt.Errorf("no assistant API key (set assistant.api_key or ANTHROPIC_API_KEY)")
	}
	return assistant.New(assistant.NewAnthropic(cfg.Assistant.APIKey, cfg.Assistant.Model), logger), nil
}

var askCmd = &cobra.Command{
	Use:     "ask <question>...",
	GroupID: "study",
	Short:   "Ask the study assistant a question",
	Example: `  brainbox ask "explain the chain rule with an example"`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAssistant()
		if err != nil {
			return err
		}
		answer, err := a.Ask(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(answer))
		return nil
	},
}

var quizCmd = &cobra.Command{
	Use:     "quiz --subject <subject>",
	GroupID: "study",
	Short:   "Generate a practice quiz and, in a terminal, take it",
	Long: `Generate practice questions on a subject.

In an interactive terminal you answer each question and get a score; with
--feedback the assistant explains every wrong answer. Otherwise the questions
are printed in the selected output format.`,
	Example: `  brainbox quiz --subject "Operating systems" --type mcq --difficulty hard --count 10`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAssistant()
		if err != nil {
			return err
		}
		questions, err := a.GenerateQuiz(cmd.Context(), assistant.QuizRequest{
			Subject:    subjectFlag,
			Type:       assistant.QuestionType(typeFlag),
			Difficulty: assistant.Difficulty(difficultyFlag),
			Count:      countFlag,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !term.IsTerminal(int(os.Stdin.Fd())) || !isTable() {
			items := make([]any, len(questions))
			for i, q := range questions {
				items[i] = q
			}
			return render(out, []string{"question", "options", "answer"}, items)
		}

		answers, err := takeQuiz(questions)
		if err != nil {
			return err
		}
		score, results := assistant.Score(questions, answers)
		fmt.Fprintf(out, "%s %d/%d\n", titleStyle.Render("Score"), score, len(questions))
		for i, r := range results {
			if r.Correct {
				continue
			}
			fmt.Fprintf(out, "%s %d. %s\n   you: %s\n   answer: %s\n",
				badStyle.Render("✗"), i+1, r.Question.Question, r.Given, r.Question.Answer)
			if feedbackFlag {
				explain(cmd, out, a, r)
			}
		}
		return nil
	},
}

func takeQuiz(questions []assistant.Question) ([]string, error) {
	answers := make([]string, len(questions))
	for i, q := range questions {
		title := fmt.Sprintf("%d/%d  %s", i+1, len(questions), q.Question)
		var field huh.Field
		if len(q.Options) > 0 {
			field = huh.NewSelect[string]().
				Title(title).
				Options(huh.NewOptions(q.Options...)...).
				Value(&answers[i])
		} else {
			field = huh.NewInput().
				Title(title).
				Value(&answers[i])
		}
		if err := huh.NewForm(huh.NewGroup(field)).Run(); err != nil {
			return nil, err
		}
	}
	return answers, nil
}

func explain(cmd *cobra.Command, out io.Writer, a *assistant.Assistant, r assistant.Result) {
	text, err := a.Feedback(cmd.Context(), r.Question, r.Given)
	if err != nil {
		logger.Warn("Feedback failed", "error", err)
		return
	}
	fmt.Fprintf(out, "   %s\n", strings.TrimSpace(text))
}

func init() {
	quizCmd.Flags().StringVar(&subjectFlag, "subject", "", "quiz subject (required)")
	quizCmd.Flags().StringVar(&typeFlag, "type", string(assistant.MultipleChoice), "question type: mcq, true-false or short")
	quizCmd.Flags().StringVar(&difficultyFlag, "difficulty", string(assistant.Medium), "easy, medium or hard")
	quizCmd.Flags().IntVarP(&countFlag, "count", "n", 5, fmt.Sprintf("number of questions (1-%d)", assistant.MaxQuestions))
	quizCmd.Flags().BoolVar(&feedbackFlag, "feedback", false, "explain wrong answers")
	quizCmd.MarkFlagRequired("subject")

	rootCmd.AddCommand(askCmd, quizCmd)
}

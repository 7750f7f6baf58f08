package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionType selects the shape of generated questions.
type QuestionType string

const (
	MultipleChoice QuestionType = "mcq"
	TrueFalse      QuestionType = "true-false"
	ShortAnswer    QuestionType = "short"
)

// Difficulty of a generated quiz.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// MaxQuestions caps one quiz.
const MaxQuestions = 20

// Question is one generated quiz question.
type Question struct {
	Question string   `json:"question" yaml:"question"`
	Options  []string `json:"options,omitempty" yaml:"options,omitempty"`
	Answer   string   `json:"answer" yaml:"answer"`
}

// QuizRequest describes the quiz to generate.
type QuizRequest struct {
	Subject    string
	Type       QuestionType
	Difficulty Difficulty
	Count      int
}

func (r QuizRequest) validate() error {
	if strings.TrimSpace(r.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrEmptyPrompt)
	}
	if r.Count < 1 || r.Count > MaxQuestions {
		return fmt.Errorf("question count must be within [1,%d], got %d", MaxQuestions, r.Count)
	}
	switch r.Type {
	case MultipleChoice, TrueFalse, ShortAnswer:
	default:
		return fmt.Errorf("unknown question type %q", r.Type)
	}
	switch r.Difficulty {
	case Easy, Medium, Hard:
	default:
		return fmt.Errorf("unknown difficulty %q", r.Difficulty)
	}
	return nil
}

func (r QuizRequest) prompt() string {
	var shape string
	switch r.Type {
	case MultipleChoice:
		shape = "multiple-choice questions with 4 options each"
	case TrueFalse:
		shape = `true/false questions whose answer is "True" or "False"`
	case ShortAnswer:
		shape = "short answer questions where the answer is a brief phrase or sentence"
	}
	return fmt.Sprintf(`Generate %d %s %s about %s.
For each question provide a "question" text, for multiple-choice questions an array of 4 "options", and the correct "answer".
Reply with only a JSON array of objects.`, r.Count, r.Difficulty, shape, r.Subject)
}

const quizSystem = "You write exam practice questions. Output strictly valid JSON."

// GenerateQuiz asks the model for questions and parses its reply.
func (a *Assistant) GenerateQuiz(ctx context.Context, req QuizRequest) ([]Question, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	reply, err := a.completer.Complete(ctx, quizSystem, req.prompt())
	if err != nil {
		return nil, err
	}
	questions, err := ParseQuestions(reply)
	if err != nil {
		a.logger.Warn("Unusable quiz reply", "subject", req.Subject, "error", err)
		return nil, err
	}
	if len(questions) > req.Count {
		questions = questions[:req.Count]
	}
	return questions, nil
}

// ParseQuestions extracts the JSON array from a model reply, tolerating a
// surrounding code fence or prose.
func ParseQuestions(reply string) ([]Question, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in reply")
	}

	var questions []Question
	if err := json.Unmarshal([]byte(reply[start:end+1]), &questions); err != nil {
		return nil, fmt.Errorf("failed to parse questions: %w", err)
	}
	out := questions[:0]
	for _, q := range questions {
		if strings.TrimSpace(q.Question) == "" || strings.TrimSpace(q.Answer) == "" {
			continue
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("reply contained no complete questions")
	}
	return out, nil
}

// Result is the outcome of one answered question.
type Result struct {
	Question Question
	Given    string
	Correct  bool
}

// Score compares answers to the expected ones, ignoring case and surrounding
// whitespace. Missing answers count as wrong.
func Score(questions []Question, answers []string) (int, []Result) {
	correct := 0
	results := make([]Result, len(questions))
	for i, q := range questions {
		var given string
		if i < len(answers) {
			given = answers[i]
		}
		ok := given != "" && strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(q.Answer))
		if ok {
			correct++
		}
		results[i] = Result{Question: q, Given: given, Correct: ok}
	}
	return correct, results
}

// Feedback asks the model to explain a student's answer.
func (a *Assistant) Feedback(ctx context.Context, q Question, given string) (string, error) {
	prompt := fmt.Sprintf(`The question was: %q.
The correct answer is: %q.
The student answered: %q.
In two or three sentences, say whether the student is right and explain the correct answer.`, q.Question, q.Answer, given)
	return a.completer.Complete(ctx, askSystem, prompt)
}

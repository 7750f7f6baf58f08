// Package confirm provides the yes/no gate every delete passes through.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ErrNotInteractive is returned by Prompt when stdin is not a terminal.
var ErrNotInteractive = errors.New("confirmation requires an interactive terminal (use --yes)")

// Gate asks the user to approve a destructive action. It blocks until the
// user answers or ctx is done.
type Gate interface {
	ConfirmDestructive(ctx context.Context, message string) (bool, error)
}

// Static always gives the same answer. Static(true) backs --yes.
type Static bool

func (s Static) ConfirmDestructive(context.Context, string) (bool, error) {
	return bool(s), nil
}

// Func adapts a function to Gate.
type Func func(ctx context.Context, message string) (bool, error)

func (f Func) ConfirmDestructive(ctx context.Context, message string) (bool, error) {
	return f(ctx, message)
}

// Prompt asks on the terminal with a huh confirm dialog.
type Prompt struct {
	// Title is shown above the message. Defaults to "Are you sure?".
	Title string
}

func (p Prompt) ConfirmDestructive(ctx context.Context, message string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, ErrNotInteractive
	}

	title := p.Title
	if title == "" {
		title = "Are you sure?"
	}

	var approved bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(message).
				Affirmative("Yes, delete it").
				Negative("Cancel").
				Value(&approved),
		),
	).RunWithContext(ctx)
	if err != nil {
		// Esc or Ctrl-C on the dialog counts as "no".
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return approved, nil
}

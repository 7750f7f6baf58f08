package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/brainbox-app/brainbox/internal/remote"
	"github.com/brainbox-app/brainbox/internal/session"
)

var (
	passwordFlag string
	nameFlag     string
	photoFlag    string
)

var registerCmd = &cobra.Command{
	Use:     "register <email>",
	GroupID: "account",
	Short:   "Create an account and sign in",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Choose a password (at least 8 characters)")
		if err != nil {
			return err
		}
		sess, err := remote.NewAuthClient(cfg.Client.Server, httpClient()).
			Register(cmd.Context(), args[0], nameFlag, photoFlag, password)
		if err != nil {
			return err
		}
		return saveSession(cmd, sess, "Welcome")
	},
}

var loginCmd = &cobra.Command{
	Use:     "login <email>",
	GroupID: "account",
	Short:   "Sign in and store the session token",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Password")
		if err != nil {
			return err
		}
		sess, err := remote.NewAuthClient(cfg.Client.Server, httpClient()).
			Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		return saveSession(cmd, sess, "Signed in")
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "account",
	Short:   "Revoke the session token and forget it",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := session.Load(credentialsPath())
		if errors.Is(err, session.ErrNoSession) {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
			return nil
		}
		if err != nil {
			return err
		}
		// An expired token cannot be revoked; forgetting it is enough.
		if sess.Valid(timeNow()) {
			if err := remote.NewAuthClient(cfg.Client.Server, httpClient()).Logout(cmd.Context(), sess); err != nil && !remote.IsUnauthorized(err) {
				return err
			}
		}
		if err := session.Clear(credentialsPath()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	GroupID: "account",
	Short:   "Show the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := requireSession()
		if err != nil {
			return err
		}
		user, err := remote.NewAuthClient(cfg.Client.Server, httpClient()).CurrentUser(cmd.Context(), sess)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), []string{"email", "displayName", "photoUrl", "createdAt"}, []any{user})
	},
}

var profileCmd = &cobra.Command{
	Use:     "profile",
	GroupID: "account",
	Short:   "Change your display name or photo",
	Example: `  brainbox profile --name "Ada L."
  brainbox profile --photo https://img.example.com/ada.png
  brainbox profile --photo ""`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var name, photo *string
		if cmd.Flags().Changed("name") {
			name = &nameFlag
		}
		if cmd.Flags().Changed("photo") {
			photo = &photoFlag
		}
		if name == nil && photo == nil {
			return fmt.Errorf("nothing to change (use --name or --photo)")
		}

		sess, err := requireSession()
		if err != nil {
			return err
		}
		user, err := remote.NewAuthClient(cfg.Client.Server, httpClient()).UpdateProfile(cmd.Context(), sess, name, photo)
		if err != nil {
			return err
		}

		// Keep the stored session's greeting name current.
		sess.DisplayName = user.DisplayName
		if err := session.Save(credentialsPath(), sess); err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), []string{"email", "displayName", "photoUrl", "createdAt"}, []any{user})
	},
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().StringVar(&passwordFlag, "password", "", "password (prompted when omitted; also BRAINBOX_PASSWORD)")
	}
	registerCmd.Flags().StringVar(&nameFlag, "name", "", "display name (default: the part of the email before @)")
	profileCmd.Flags().StringVar(&nameFlag, "name", "", "new display name")
	for _, c := range []*cobra.Command{registerCmd, profileCmd} {
		c.Flags().StringVar(&photoFlag, "photo", "", "profile photo URL")
	}

	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd, profileCmd)
}

func readPassword(title string) (string, error) {
	if passwordFlag != "" {
		return passwordFlag, nil
	}
	if env := os.Getenv("BRAINBOX_PASSWORD"); env != "" {
		return env, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no password given (use --password or BRAINBOX_PASSWORD)")
	}

	var password string
	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(title).
			EchoMode(huh.EchoModePassword).
			Value(&password),
	)).Run()
	if err != nil {
		return "", err
	}
	return password, nil
}

func saveSession(cmd *cobra.Command, sess *session.Session, greeting string) error {
	if err := session.Save(credentialsPath(), sess); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s, %s. Session valid until %s.\n",
		greeting, sess.DisplayName, sess.ExpiresAt.Local().Format("Mon Jan 2 15:04"))
	return nil
}

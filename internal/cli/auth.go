package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jkdigital/servicehub/internal/session"
)

func (rc *rootContext) loginCommand() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <mobile>",
		Short: "Log in as a customer",
		Long:  "Log in with your 10 digit mobile number. The password is read from --password or the first line of stdin.",
		Example: `  hubctl login 9876543210
  echo "$PASS" | hubctl login 9876543210`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(cmd, password, "Password: ")
			if err != nil {
				return err
			}
			c, err := rc.client("", "")
			if err != nil {
				return err
			}
			res, err := c.Login(cmd.Context(), args[0], pw)
			if err != nil {
				return err
			}
			user := res.User
			if err := rc.store.Save(session.Session{
				BaseURL:   c.BaseURL(),
				Token:     res.Token,
				ExpiresAt: res.ExpiresAt,
				User:      &user,
			}); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printSuccess(out, "Logged in as %s (%s)", user.Name, user.Mobile)
			printBalance(out, user.WalletBalance)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func (rc *rootContext) adminLoginCommand() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in as an administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(cmd, password, "Password: ")
			if err != nil {
				return err
			}
			c, err := rc.client("", "")
			if err != nil {
				return err
			}
			res, err := c.AdminLogin(cmd.Context(), args[0], pw)
			if err != nil {
				return err
			}
			if err := rc.store.Save(session.Session{
				BaseURL:   c.BaseURL(),
				Token:     res.Token,
				ExpiresAt: res.ExpiresAt,
				Admin:     res.Admin.Username,
			}); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Logged in as administrator %s", res.Admin.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "administrator password")
	return cmd
}

func (rc *rootContext) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rc.store.Clear(); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (rc *rootContext) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := rc.store.Load()
			if err != nil {
				return loginHint(err, "hubctl login <mobile>")
			}
			out := cmd.OutOrStdout()
			if sess.IsAdmin() {
				fmt.Fprintf(out, "administrator %s\n", bold.Sprint(sess.Admin))
			} else {
				fmt.Fprintf(out, "%s (%s)  id %s\n", bold.Sprint(sess.User.Name), sess.User.Mobile, sess.User.ID)
				printBalance(out, sess.User.WalletBalance)
			}
			fmt.Fprintf(out, "  server: %s\n  expires: %s\n", sess.BaseURL, shortTime(sess.ExpiresAt))
			return nil
		},
	}
}

func (rc *rootContext) refreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload your profile and wallet balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, c, err := rc.userSession()
			if err != nil {
				return err
			}
			profile, err := c.Refresh(cmd.Context(), sess.User.ID)
			if err != nil {
				return rc.handleAuthError(err)
			}
			sess.User = &profile
			if err := rc.store.Save(sess); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", bold.Sprint(profile.Name), profile.Mobile)
			printBalance(out, profile.WalletBalance)
			if profile.IsBlocked {
				printWarning(out, "Your account is blocked")
			}
			return nil
		},
	}
}

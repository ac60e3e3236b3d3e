// Package cli implements hubctl, the ServiceHub command line client.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joeshaw/envdecode"
	"github.com/spf13/cobra"

	"github.com/jkdigital/servicehub/internal/client"
	"github.com/jkdigital/servicehub/internal/session"
)

// env holds the settings hubctl reads from the environment.
type env struct {
	Server  string        `env:"SERVICEHUB_URL,default=http://localhost:5000"`
	Session string        `env:"SERVICEHUB_SESSION"`
	Timeout time.Duration `env:"SERVICEHUB_TIMEOUT,default=120s"`
}

// Options are the global flags shared by every command.
type Options struct {
	Server      string
	SessionPath string
	NoColor     bool
	Timeout     time.Duration
}

type rootContext struct {
	opts        Options
	serverFlag  bool
	store       *session.Store
	interactive bool
}

// NewRootCommand builds the hubctl command tree.
func NewRootCommand() *cobra.Command {
	var cfg env
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		cfg = env{Server: "http://localhost:5000", Timeout: 120 * time.Second}
	}

	rc := &rootContext{}
	root := &cobra.Command{
		Use:   "hubctl",
		Short: "ServiceHub command line client",
		Long: `hubctl talks to a ServiceHub server: customers book LLR exams, generate
DL PDFs, top up their wallet and track requests; administrators manage users,
the service catalog and pricing.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rc.init(cmd)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVar(&rc.opts.Server, "server", cfg.Server, "ServiceHub server URL (env SERVICEHUB_URL)")
	flags.StringVar(&rc.opts.SessionPath, "session", cfg.Session, "session file (default under the user config dir)")
	flags.BoolVar(&rc.opts.NoColor, "no-color", false, "disable coloured output")
	flags.DurationVar(&rc.opts.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")

	root.AddCommand(
		rc.loginCommand(),
		rc.logoutCommand(),
		rc.whoamiCommand(),
		rc.refreshCommand(),
		rc.servicesCommand(),
		rc.requestCommand(),
		rc.historyCommand(),
		rc.topupCommand(),
		rc.ordersCommand(),
		rc.llrCommand(),
		rc.dlCommand(),
		rc.adminCommand(),
		completionCommand(),
	)
	return root
}

func (rc *rootContext) init(cmd *cobra.Command) error {
	if rc.opts.NoColor {
		color.NoColor = true
	}
	rc.serverFlag = cmd.Flags().Changed("server")
	rc.interactive = isTerminal(cmd.OutOrStdout())

	path := rc.opts.SessionPath
	if path == "" {
		var err error
		if path, err = session.DefaultPath(); err != nil {
			return err
		}
	}
	rc.store = session.NewStore(path)
	return nil
}

// Execute runs hubctl with the process arguments and returns the exit code.
func Execute(ctx context.Context) int {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		printError(root.ErrOrStderr(), err)
		return 1
	}
	return 0
}

// client returns an API client for baseURL, or the configured server.
func (rc *rootContext) client(baseURL, token string) (*client.Client, error) {
	if baseURL == "" || rc.serverFlag {
		baseURL = rc.opts.Server
	}
	opts := []client.Option{}
	if rc.opts.Timeout > 0 {
		opts = append(opts, client.WithHTTPClient(newHTTPClient(rc.opts.Timeout)))
	}
	if token != "" {
		opts = append(opts, client.WithToken(token))
	}
	return client.New(baseURL, opts...)
}

// userSession loads a customer login and a client carrying its token.
func (rc *rootContext) userSession() (session.Session, *client.Client, error) {
	sess, err := rc.store.Load()
	if err != nil {
		return session.Session{}, nil, loginHint(err, "hubctl login <mobile>")
	}
	if sess.User == nil {
		return session.Session{}, nil, errors.New("this command needs a customer login (hubctl login <mobile>)")
	}
	c, err := rc.client(sess.BaseURL, sess.Token)
	return sess, c, err
}

// adminSession loads an administrator login and a client carrying its token.
func (rc *rootContext) adminSession() (session.Session, *client.Client, error) {
	sess, err := rc.store.Load()
	if err != nil {
		return session.Session{}, nil, loginHint(err, "hubctl admin login <username>")
	}
	if !sess.IsAdmin() {
		return session.Session{}, nil, errors.New("this command needs an administrator login (hubctl admin login <username>)")
	}
	c, err := rc.client(sess.BaseURL, sess.Token)
	return sess, c, err
}

func loginHint(err error, how string) error {
	if errors.Is(err, session.ErrNoSession) {
		return fmt.Errorf("%w: run %s", err, how)
	}
	return err
}

// handleAuthError drops a session the server no longer accepts.
func (rc *rootContext) handleAuthError(err error) error {
	if client.IsStatus(err, http.StatusUnauthorized) {
		_ = rc.store.Clear()
		return fmt.Errorf("%w (session cleared, please log in again)", err)
	}
	return err
}

// readSecret returns flagValue or reads one line from in.
func readSecret(cmd *cobra.Command, flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if isTerminal(cmd.OutOrStdout()) {
		fmt.Fprint(cmd.OutOrStdout(), prompt)
	}
	line, err := readLine(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

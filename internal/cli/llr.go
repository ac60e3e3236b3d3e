package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkdigital/servicehub/internal/app/domain/llr"
	"github.com/jkdigital/servicehub/internal/client"
)

func (rc *rootContext) llrCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llr",
		Short: "Book and track learner licence exams",
	}
	cmd.AddCommand(
		rc.llrSubmitCommand(),
		rc.llrStatusCommand(),
		rc.llrWatchCommand(),
		rc.llrDownloadCommand(),
		rc.llrListCommand(),
	)
	return cmd
}

func (rc *rootContext) llrSubmitCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "submit <service-id>",
		Short: "Book an exam",
		Long: `Book an LLR exam. The applicant details are read from --file or stdin, one
per line: application number, date of birth, password, then optional pin and
exam type (day or night).`,
		Example: `  printf 'JK123456\n01-01-2000\nPASS\n' | hubctl llr submit 6512ab`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			text, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			input, err := llr.ParseExamInput(string(text))
			if err != nil {
				return err
			}

			sess, c, err := rc.userSession()
			if err != nil {
				return err
			}
			spin := NewSpinner(cmd.ErrOrStderr(), "Submitting exam...", rc.interactive)
			spin.Start()
			res, err := c.SubmitExam(cmd.Context(), sess.User.ID, args[0], input)
			spin.Stop()
			if err != nil {
				return rc.handleAuthError(err)
			}
			_ = rc.store.ApplyBalance(res.NewWalletBalance)

			out := cmd.OutOrStdout()
			printSuccess(out, "%s", res.Message)
			fmt.Fprintf(out, "  token:     %s\n  applicant: %s\n  RTO:       %s\n  queue:     %s\n",
				bold.Sprint(res.Token), res.ApplName, res.RTOName, res.Queue)
			printBalance(out, res.NewWalletBalance)
			printInfo(out, "Track it with 'hubctl llr watch %s'", res.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "read applicant details from this file instead of stdin")
	return cmd
}

func (rc *rootContext) llrStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <token>",
		Short: "Check an exam once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := rc.userSession()
			if err != nil {
				return err
			}
			status, err := c.CheckExamStatus(cmd.Context(), args[0])
			if err != nil {
				return rc.handleAuthError(err)
			}
			printExamStatus(cmd.OutOrStdout(), args[0], status)
			return nil
		},
	}
}

func (rc *rootContext) llrWatchCommand() *cobra.Command {
	var interval time.Duration
	var download bool
	cmd := &cobra.Command{
		Use:   "watch <token>",
		Short: "Poll an exam until it completes or is refunded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, c, err := rc.userSession()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			token := args[0]
			started := time.Now()

			var last client.ExamStatus
			err = c.Watch(cmd.Context(), token, interval, func(s client.ExamStatus) error {
				if s != last {
					printExamStatus(out, token, s)
					last = s
				}
				return nil
			})
			if err != nil {
				return rc.handleAuthError(err)
			}

			fmt.Fprintf(out, "finished after %s\n", formatDuration(time.Since(started)))
			switch last.TokenStatus {
			case llr.StatusRefunded:
				if profile, err := c.Refresh(cmd.Context(), sess.User.ID); err == nil {
					_ = rc.store.ApplyBalance(profile.WalletBalance)
					printBalance(out, profile.WalletBalance)
				}
			case llr.StatusCompleted:
				if download && last.PDFAvailable {
					return saveExamPDF(cmd, c, token, "")
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", client.DefaultWatchInterval, "poll interval")
	cmd.Flags().BoolVar(&download, "download", false, "save the certificate when the exam completes")
	return cmd
}

func (rc *rootContext) llrDownloadCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <token>",
		Short: "Save the certificate of a completed exam",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := rc.userSession()
			if err != nil {
				return err
			}
			return rc.handleAuthError(saveExamPDF(cmd, c, args[0], output))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: the server's file name)")
	return cmd
}

func saveExamPDF(cmd *cobra.Command, c *client.Client, token, output string) error {
	pdf, err := c.DownloadExamPDF(cmd.Context(), token)
	if err != nil {
		return err
	}
	if output == "" {
		output = pdf.Filename
	}
	if output == "" {
		output = fmt.Sprintf("LLR_%s.pdf", token)
	}
	if err := writePDF(output, pdf.Data); err != nil {
		return err
	}
	printSuccess(cmd.OutOrStdout(), "Saved %s", output)
	return nil
}

// writePDF decodes base64 data into path.
func writePDF(path, data string) error {
	if data == "" {
		return errors.New("server returned an empty PDF")
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("decode pdf: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, raw, 0o644)
}

func (rc *rootContext) llrListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your booked exams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, c, err := rc.userSession()
			if err != nil {
				return err
			}
			tokens, err := c.ExamTokens(cmd.Context(), sess.User.ID)
			if err != nil {
				return rc.handleAuthError(err)
			}
			table := newTable(cmd.OutOrStdout(), "Token", "Applicant", "Appl No", "RTO", "Status", "Price", "Booked")
			for _, t := range tokens {
				table.Append([]string{
					t.Token, t.ApplName, t.ApplNo, t.RTOName, statusText(string(t.Status)),
					money(t.ServicePrice), shortTime(t.CreatedAt),
				})
			}
			table.Render()
			return nil
		},
	}
}

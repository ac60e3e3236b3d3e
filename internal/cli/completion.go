package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "completion <bash|zsh|fish>",
		Short:     "Print a shell completion script",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := generateCompletion(cmd.Root(), args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(script)
			return err
		},
	}

	install := &cobra.Command{
		Use:       "install <bash|zsh|fish>",
		Short:     "Install the completion script for the current user",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get home directory: %w", err)
			}
			path, err := installCompletion(cmd.Root(), args[0], home)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printSuccess(out, "Completion script installed to %s", path)
			switch args[0] {
			case "bash":
				fmt.Fprintln(out, "  add to ~/.bashrc: source ~/.bash_completion.d/hubctl")
			case "zsh":
				fmt.Fprintln(out, "  add to ~/.zshrc: fpath=(~/.zsh/completion $fpath); autoload -Uz compinit && compinit")
			}
			return nil
		},
	}
	cmd.AddCommand(install)
	return cmd
}

func generateCompletion(root *cobra.Command, shell string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch shell {
	case "bash":
		err = root.GenBashCompletionV2(&buf, true)
	case "zsh":
		err = root.GenZshCompletion(&buf)
	case "fish":
		err = root.GenFishCompletion(&buf, true)
	default:
		return nil, fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish)", shell)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// installCompletion writes the script where each shell looks for per-user
// completions under home.
func installCompletion(root *cobra.Command, shell, home string) (string, error) {
	var path string
	switch shell {
	case "bash":
		path = filepath.Join(home, ".bash_completion.d", "hubctl")
	case "zsh":
		path = filepath.Join(home, ".zsh", "completion", "_hubctl")
	case "fish":
		path = filepath.Join(home, ".config", "fish", "completions", "hubctl.fish")
	default:
		return "", fmt.Errorf("unsupported shell: %s", shell)
	}

	script, err := generateCompletion(root, shell)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create completion directory: %w", err)
	}
	if err := os.WriteFile(path, script, 0o644); err != nil {
		return "", fmt.Errorf("failed to write completion script: %w", err)
	}
	return path, nil
}

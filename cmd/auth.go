package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/reqflow/config"
)

var profile string

// authCmd groups token commands
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the API token sent with every call",
	Long: `Store, inspect and remove the API token kept in the OS keychain. The
token is sent as "<auth.scheme> <token>" in the auth.header header.
REQFLOW_TOKEN overrides the stored token.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Store a token; reads stdin when no argument is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var token string
		if len(args) == 1 {
			token = args[0]
		} else {
			var err error
			if token, err = readToken(cmd.InOrStdin()); err != nil {
				return err
			}
		}

		p := authProfile()
		if err := config.SaveToken(p, token); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Token saved for profile %s\n", p)
		return nil
	},
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := authProfile()
		if err := config.ClearToken(p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Token removed for profile %s\n", p)
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a token is available",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := authProfile()
		token, err := config.LoadToken(p)
		if errors.Is(err, config.ErrNoToken) {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ No token for profile %s\n", p)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Token for profile %s: %s\n", p, maskToken(token))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd, authClearCmd, authStatusCmd)

	authCmd.PersistentFlags().StringVar(&profile, "profile", "", "keyring profile (default from config)")
}

func authProfile() string {
	if profile != "" {
		return profile
	}
	return cfg.Auth.Profile
}

// readToken reads the first line of r
func readToken(r io.Reader) (string, error) {
	reader := bufio.NewReader(r)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", fmt.Errorf("no token given")
	}
	return token, nil
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

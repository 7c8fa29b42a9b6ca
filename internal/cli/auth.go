package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/pratik-mahalle/fleetfix/internal/auth"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "auth",
		Short:       "Operator token commands",
		Annotations: map[string]string{skipClientAnnotation: "true"},
	}

	cmd.AddCommand(newAuthTokenCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthWhoamiCmd())

	return cmd
}

func newAuthTokenCmd() *cobra.Command {
	var subject, email, role, secret string
	var ttl time.Duration
	var save bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token signed with the hub's JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				secret = promptPassword("JWT secret: ")
			}
			if subject == "" {
				subject = email
			}
			if subject == "" {
				return fmt.Errorf("--subject or --email is required")
			}

			token, err := auth.MintToken(subject, email, role, secret, ttl)
			if err != nil {
				return fmt.Errorf("failed to mint token: %w", err)
			}

			if !save {
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			}

			viper.Set("auth.token", token)
			if err := writeConfig(); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token for %s (%s) saved, expires in %s\n", subject, role, ttl)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject (defaults to --email)")
	cmd.Flags().StringVar(&email, "email", "", "operator email recorded as the actor")
	cmd.Flags().StringVar(&role, "role", auth.RoleOperator, "role: operator or viewer")
	cmd.Flags().StringVar(&secret, "secret", "", "JWT signing secret (default $JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&save, "save", false, "store the token in the config file")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			viper.Set("auth.token", "")
			if err := writeConfig(); err != nil {
				return fmt.Errorf("failed to clear credentials: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out successfully")
			return nil
		},
	}
}

func newAuthWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity in the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := viper.GetString("auth.token")
			if token == "" {
				return fmt.Errorf("no operator token stored")
			}

			// The CLI has no signing secret; the hub verifies the signature.
			var claims auth.Claims
			if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
				return fmt.Errorf("stored token is malformed: %w", err)
			}

			out := cmd.OutOrStdout()
			if !isTable() {
				return printOutput(out, map[string]interface{}{
					"subject":    claims.Subject,
					"email":      claims.Email,
					"role":       claims.Role,
					"actor":      claims.Actor(),
					"expires_at": claims.ExpiresAt,
				})
			}

			fmt.Fprintf(out, "Actor:    %s\n", claims.Actor())
			fmt.Fprintf(out, "Role:     %s\n", claims.Role)
			if claims.ExpiresAt != nil {
				exp := claims.ExpiresAt.Time
				state := ""
				if time.Now().After(exp) {
					state = " (expired)"
				}
				fmt.Fprintf(out, "Expires:  %s%s\n", formatTime(&exp), state)
			}
			return nil
		},
	}
}

func promptInput(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return ""
	}
	return string(password)
}

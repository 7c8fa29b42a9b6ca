package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pratik-mahalle/fleetfix/pkg/client"
)

// skipClientAnnotation marks commands that work without talking to the hub.
const skipClientAnnotation = "fleetfix/skip-client"

// noAuthAnnotation marks commands that talk to the hub without an operator token.
const noAuthAnnotation = "fleetfix/no-auth"

var (
	cfgFile      string
	outputFormat string
	serverURL    string
	apiClient    *client.Client
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleetfixctl",
		Short: "fleetfix CLI - remediation queue for managed hosts",
		Long: `fleetfixctl queues remediation actions for managed hosts, approves or
rejects them, inspects their audit trail and manages host maintenance mode.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if hasAnnotation(cmd, skipClientAnnotation) {
				return nil
			}
			if hasAnnotation(cmd, noAuthAnnotation) {
				return initClient()
			}
			return initAuthenticatedClient()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.fleetfix/config.yaml)")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: table, json, yaml")
	cmd.PersistentFlags().StringVar(&serverURL, "server", "", "hub URL (overrides config)")

	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newActionsCmd())
	cmd.AddCommand(newHostsCmd())
	cmd.AddCommand(newWhitelistCmd())
	cmd.AddCommand(newAgentCmd())

	return cmd
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
}

// hasAnnotation looks for key on cmd and its parents.
func hasAnnotation(cmd *cobra.Command, key string) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[key]; ok {
			return true
		}
	}
	return false
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		_ = os.MkdirAll(dir, 0700)
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("FLEETFIX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server_url", "http://localhost:8080")
	viper.SetDefault("output", "table")

	_ = viper.ReadInConfig()
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".fleetfix"), nil
}

// configPath is where config writes go: --config when given, else the default file.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func writeConfig() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return viper.WriteConfigAs(path)
}

func initClient() error {
	url := viper.GetString("server_url")
	if serverURL != "" {
		url = serverURL
	}

	apiClient = client.NewClient(client.Config{
		BaseURL:   url,
		UserAgent: "fleetfixctl",
	})
	return nil
}

func initAuthenticatedClient() error {
	if err := initClient(); err != nil {
		return err
	}

	token := viper.GetString("auth.token")
	if token == "" {
		return fmt.Errorf("no operator token. Run 'fleetfixctl auth token --save' or set FLEETFIX_AUTH_TOKEN")
	}

	apiClient.SetToken(token)
	return nil
}

func getOutputFormat() string {
	if outputFormat != "" {
		return outputFormat
	}
	return viper.GetString("output")
}

package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"taskpad/internal/config"
	"taskpad/internal/credentials"
	"taskpad/internal/utils"
)

func newCredentialsCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	credentialsCmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage backend tokens",
		Long: "Store, inspect and remove backend tokens in the system keyring.\n" +
			"The rest backend looks up its token by base URL, falling back to " + credentials.EnvVar(config.BackendREST) + ".",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	credentialsCmd.AddCommand(newCredentialsSetCmd(stdout, cfg))
	credentialsCmd.AddCommand(newCredentialsGetCmd(stdout, cfg))
	credentialsCmd.AddCommand(newCredentialsDeleteCmd(stdout, cfg))
	return credentialsCmd
}

func credentialsManager(cfg *Config) *credentials.Manager {
	if cfg.Credentials != nil {
		return cfg.Credentials
	}
	return credentials.NewManager()
}

// credentialTarget resolves [backend] [account]. The account of the rest
// backend defaults to the configured base URL.
func credentialTarget(cmd *cobra.Command, cfg *Config, args []string) (string, string, error) {
	backendName := config.BackendREST
	if len(args) > 0 {
		backendName = args[0]
	}
	if len(args) > 1 {
		return backendName, args[1], nil
	}

	appCfg, err := loadConfig(cmd, cfg)
	if err != nil {
		return "", "", err
	}
	account := appCfg.Backend.REST.BaseURL
	if account == "" {
		return "", "", utils.WrapWithSuggestion(
			utils.ErrValidation("no account given"),
			"Pass the account, or set backend.rest.base_url in the config")
	}
	return backendName, account, nil
}

func newCredentialsSetCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "set [backend] [account]",
		Short: "Store a token in the system keyring",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backendName, account, err := credentialTarget(cmd, cfg, args)
			if err != nil {
				return err
			}
			handler := credentials.NewCLIHandler(credentialsManager(cfg), secretReader(cmd), stdout)
			return handler.Set(cmd.Context(), backendName, account)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func newCredentialsGetCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get [backend] [account]",
		Short: "Show where a token comes from",
		Long:  "Show whether a token is available and its source. The token itself is never printed.",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backendName, account, err := credentialTarget(cmd, cfg, args)
			if err != nil {
				return err
			}
			handler := credentials.NewCLIHandler(credentialsManager(cfg), nil, stdout)
			return handler.Get(cmd.Context(), backendName, account, isJSON(cmd))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func newCredentialsDeleteCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [backend] [account]",
		Short: "Remove a token from the system keyring",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backendName, account, err := credentialTarget(cmd, cfg, args)
			if err != nil {
				return err
			}
			handler := credentials.NewCLIHandler(credentialsManager(cfg), nil, stdout)
			return handler.Delete(cmd.Context(), backendName, account)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

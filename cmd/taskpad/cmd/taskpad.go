package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"taskpad/internal/app"
	"taskpad/internal/config"
	"taskpad/internal/credentials"
	"taskpad/internal/tui"
	"taskpad/internal/utils"
)

// Version and Commit are set at build time
var (
	Version = "dev"
	Commit  = "none"
)

// Config holds the injectable parts of a CLI run
type Config struct {
	ConfigPath  string               // config file; empty uses the XDG default
	AppConfig   *config.Config       // used instead of loading a file (for testing)
	AppOptions  []app.Option         // extra component overrides (for testing)
	Credentials *credentials.Manager // replaces the OS keyring manager (for testing)
	Stdin       io.Reader
	Context     context.Context
	OnServe     func(addr string) // called once the API server listens (for testing)
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	if cfg == nil {
		cfg = &Config{}
	}
	rootCmd := NewTaskpad(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if cfg.Stdin != nil {
		rootCmd.SetIn(cfg.Stdin)
	}

	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if containsJSONFlag(args) {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", errorMessage(err))
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

// errorMessage returns the text shown for a failed command. Classified
// errors use their user-facing message and suggestion; anything else (cobra
// usage errors, I/O failures) is shown as is.
func errorMessage(err error) string {
	if utils.KindOf(err) == utils.KindUnknown {
		return err.Error()
	}
	msg := utils.UserMessage(err)
	var e *utils.Error
	if errors.As(err, &e) && e.GetSuggestion() != "" {
		msg += "\n" + e.GetSuggestion()
	}
	return msg
}

type errorResponse struct {
	Error string          `json:"error"`
	Kind  utils.ErrorKind `json:"kind"`
	Code  int             `json:"code"`
}

func outputErrorJSON(err error, stdout io.Writer) {
	response := errorResponse{
		Error: errorMessage(err),
		Kind:  utils.KindOf(err),
		Code:  1,
	}
	jsonBytes, _ := json.Marshal(response)
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// NewTaskpad creates the root command with injectable IO
func NewTaskpad(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:     "taskpad",
		Short:   "A terminal task manager",
		Long:    "taskpad is a task manager with accounts, a dashboard and swappable item backends.\nRun without a command to open the interactive interface.",
		Version: Version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(a *app.App) error {
				return tui.Run(a, tui.WithContext(cmd.Context()))
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Path to config file")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable debug output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")

	cmd.AddCommand(newLoginCmd(stdout, cfg))
	cmd.AddCommand(newRegisterCmd(stdout, cfg))
	cmd.AddCommand(newLogoutCmd(stdout, cfg))
	cmd.AddCommand(newWhoamiCmd(stdout, cfg))
	cmd.AddCommand(newResetPasswordCmd(stdout, cfg))
	cmd.AddCommand(newItemsCmd(stdout, cfg))
	cmd.AddCommand(newThemeCmd(stdout, cfg))
	cmd.AddCommand(newBackgroundCmd(stdout, cfg))
	cmd.AddCommand(newServeCmd(stdout, cfg))
	cmd.AddCommand(newCredentialsCmd(stdout, cfg))
	cmd.AddCommand(newVersionCmd(stdout))

	return cmd
}

// loadConfig resolves the configuration and applies the global flags
func loadConfig(cmd *cobra.Command, cfg *Config) (*config.Config, error) {
	appCfg := cfg.AppConfig
	if appCfg == nil {
		loaded, err := config.Load(cfg.ConfigPath)
		if err != nil {
			return nil, err
		}
		appCfg = loaded
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	format := ""
	if jsonOutput {
		format = "json"
	}
	appCfg.ApplyFlags(verbose, format)
	utils.SetVerboseMode(appCfg.Logging.Verbose)

	if err := appCfg.Validate(); err != nil {
		return nil, utils.WrapWithSuggestion(utils.ErrValidation(err.Error()), "Check your config file")
	}
	return appCfg, nil
}

// withApp builds the application for one command and closes it afterwards
func withApp(cmd *cobra.Command, cfg *Config, fn func(a *app.App) error) error {
	appCfg, err := loadConfig(cmd, cfg)
	if err != nil {
		return err
	}

	opts := append([]app.Option{}, cfg.AppOptions...)
	if cfg.Credentials != nil {
		opts = append(opts, app.WithCredentials(cfg.Credentials))
	}

	a, err := app.New(appCfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			utils.Warnf("Close failed: %v", cerr)
		}
	}()
	return fn(a)
}

func isJSON(cmd *cobra.Command) bool {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return jsonOutput
}

// secretReader prompts without echo on a terminal and reads a plain line
// from piped input
func secretReader(cmd *cobra.Command) credentials.SecretReader {
	in := cmd.InOrStdin()
	errOut := cmd.ErrOrStderr()

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return func(prompt string) (string, error) {
			_, _ = fmt.Fprint(errOut, prompt)
			secret, err := term.ReadPassword(int(f.Fd()))
			_, _ = fmt.Fprintln(errOut)
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(string(secret)), nil
		}
	}
	return credentials.LineReader(in, errOut)
}

// password returns the --password flag value or prompts for it
func password(cmd *cobra.Command, read credentials.SecretReader, prompt string) (string, error) {
	if cmd.Flags().Changed("password") {
		return cmd.Flags().GetString("password")
	}
	secret, err := read(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return secret, nil
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if isJSON(cmd) {
				return writeJSON(stdout, map[string]string{"version": Version, "commit": Commit})
			}
			_, _ = fmt.Fprintf(stdout, "taskpad\nVersion: %s\nCommit: %s\n", Version, Commit)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

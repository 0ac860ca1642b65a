package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"taskpad/internal/app"
	"taskpad/internal/prefs"
)

func newThemeCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|toggle]",
		Short:     "Show or change the colour theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"light", "dark", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(a *app.App) error {
				if len(args) == 1 {
					if err := setTheme(a.Prefs, args[0]); err != nil {
						return err
					}
				}
				mode := a.Prefs.Mode()
				if isJSON(cmd) {
					return writeJSON(stdout, map[string]string{"theme": string(mode)})
				}
				_, _ = fmt.Fprintf(stdout, "Theme: %s\n", mode)
				return nil
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func setTheme(p *prefs.Prefs, arg string) error {
	if strings.EqualFold(arg, "toggle") {
		_, err := p.ToggleMode()
		return err
	}
	mode, err := prefs.ParseMode(arg)
	if err != nil {
		return err
	}
	return p.SetMode(mode)
}

func newBackgroundCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "background [image-url]",
		Short: "Show or change the background image",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reset, _ := cmd.Flags().GetBool("reset")
			if reset && len(args) == 1 {
				return fmt.Errorf("pass either an image reference or --reset, not both")
			}

			return withApp(cmd, cfg, func(a *app.App) error {
				switch {
				case reset:
					if err := a.Prefs.SetBackground(""); err != nil {
						return err
					}
				case len(args) == 1:
					if err := a.Prefs.SetBackground(args[0]); err != nil {
						return err
					}
				}

				bg, isDefault := a.Prefs.Background(), a.Prefs.IsDefaultBackground()
				if isJSON(cmd) {
					return writeJSON(stdout, map[string]any{"background": bg, "default": isDefault})
				}
				suffix := ""
				if isDefault {
					suffix = " (default)"
				}
				_, _ = fmt.Fprintf(stdout, "Background: %s%s\n", bg, suffix)
				return nil
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().Bool("reset", false, "Restore the default background")
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Player HUD settings commands",
	}

	cmd.AddCommand(newSettingsGetCmd())
	cmd.AddCommand(newSettingsSetCmd())

	return cmd
}

func newSettingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <player-id>",
		Short: "Show a player's current settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Settings

			if err := client.Get(cmd.Context(), playerPath(args[0], "/settings"), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	var (
		toggle   bool
		position string
		language string
	)

	cmd := &cobra.Command{
		Use:   "set <player-id>",
		Short: "Change a player's settings as if they typed the command",
		Long: `Applies one command per flag, in the order position, language, toggle.
Position accepts 1-5 or a name (TopLeft, BottomLeft, TopRight, BottomRight, Center).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			type command struct{ name, arg string }
			var commands []command
			if position != "" {
				commands = append(commands, command{"position", position})
			}
			if language != "" {
				commands = append(commands, command{"language", language})
			}
			if toggle {
				commands = append(commands, command{"toggle", ""})
			}
			if len(commands) == 0 {
				return fmt.Errorf("at least one of --toggle, --position or --language is required")
			}

			var result CommandResult
			for _, c := range commands {
				req := map[string]string{"command": c.name, "arg": c.arg}
				if err := client.Post(cmd.Context(), playerPath(args[0], "/commands"), req, &result); err != nil {
					return fmt.Errorf("%s: %w", c.name, err)
				}
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&toggle, "toggle", false, "Toggle HUD visibility")
	cmd.Flags().StringVar(&position, "position", "", "HUD position (1-5 or name)")
	cmd.Flags().StringVar(&language, "language", "", "HUD language")

	return cmd
}

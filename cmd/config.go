package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"

	"github.com/brogergvhs/mangapdf/internal/config"
	"github.com/brogergvhs/mangapdf/internal/ui"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var (
	flagForceRemove bool
	flagFrom        string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the merged config and manage config profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, used, err := config.LoadMerged(config.Options{
			IgnoreConfig: flagIgnoreConfig,
			Debug:        flagDebug,
			LogFile:      flagLogFile,
			EnvFile:      flagEnvFile,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Loaded config from:\n  %s\n\n", used)
		cfg.Print(out)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the Default profile and make it active",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if path, err := config.ConfigPathByLabel(config.DefaultLabel); err == nil {
			fmt.Fprintf(out, "Configuration already exists at:\n  %s\nUse `mangapdf config reset` to recreate it.\n", path)
			return nil
		}

		fmt.Fprintln(out, "Default configuration:")
		config.DefaultConfig().Print(out)
		fmt.Fprintln(out)

		if !ui.Confirm(fmt.Sprintf("Create Default config in %s", config.ConfigsDir())) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}

		path, err := config.InitDefaultConfig()
		if err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}

		fmt.Fprintf(out, "Config created at: %s\nThis config is now active (label: Default).\n", path)
		return nil
	},
}

var configAddCmd = &cobra.Command{
	Use:   "add [label]",
	Short: "Create a new profile with default values, or import one with --from",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var label string
		if len(args) == 1 {
			label = args[0]
		} else {
			v, err := ui.Ask("Label for new config")
			if err != nil {
				return err
			}
			label = v
		}

		label = strings.TrimSpace(label)

		var (
			path string
			err  error
		)
		if flagFrom != "" {
			path, err = config.AddConfig(label, flagFrom)
		} else {
			path, err = config.CreateEmptyConfig(label)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created new config: %s\n", path)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := config.ListConfigs()
		if err != nil {
			return fmt.Errorf("cannot read configs directory: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 4, ' ', 0)
		_, _ = fmt.Fprintln(w, "LABEL\tPATH\tACTIVE")
		for _, c := range list {
			mark := ""
			if c.Active {
				mark = "yes"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", c.Label, c.Path, mark)
		}

		return w.Flush()
	},
}

var configSwitchCmd = &cobra.Command{
	Use:   "switch [label]",
	Short: "Switch to a different profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var label string

		if len(args) == 1 {
			label = args[0]
		} else {
			list, err := config.ListConfigs()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				return errors.New("no configs available, run `mangapdf config init`")
			}

			items := make([]string, 0, len(list))
			for _, c := range list {
				if c.Active {
					items = append(items, c.Label+"  (active)")
				} else {
					items = append(items, c.Label)
				}
			}

			prompt := promptui.Select{Label: "Select config", Items: items}
			idx, _, err := prompt.Run()
			if err != nil {
				return errors.New("selection cancelled")
			}
			label = list[idx].Label
		}

		if err := config.SwitchConfig(label); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Switched to:", label)
		return nil
	},
}

var configRenameCmd = &cobra.Command{
	Use:   "rename <old_label> <new_label>",
	Short: "Rename a profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.RenameConfig(args[0], args[1]); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Renamed config %q to %q\n", args[0], args[1])
		return nil
	},
}

var configRemoveCmd = &cobra.Command{
	Use:   "remove <label>",
	Short: "Remove a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := args[0]
		out := cmd.OutOrStdout()

		active, _ := config.CurrentLabel()
		if label == active && !flagForceRemove {
			if !ui.Confirm(fmt.Sprintf("Config %q is currently active. Remove it anyway", label)) {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}
		}

		if err := config.RemoveConfig(label); err != nil {
			return err
		}

		fmt.Fprintf(out, "Removed configuration %q\n", label)
		if label == active {
			fmt.Fprintf(out, "Fallback switched to: %s\n", config.DefaultLabel)
		}
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the active profile to default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ActiveConfigPath()
		if err != nil {
			return err
		}

		if err := config.SaveYAML(config.DefaultConfig(), path); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Reset active config: %s\n", path)
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit [label]",
	Short: "Open the active or given profile in $EDITOR",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := ""
		if len(args) == 1 {
			label = args[0]
		} else {
			var err error
			if label, err = config.CurrentLabel(); err != nil {
				return fmt.Errorf("failed to get current config label: %w", err)
			}
		}

		path, err := config.ConfigPathByLabel(label)
		if err != nil {
			return err
		}

		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}

		ed := exec.Command(editor, path)
		ed.Stdin = os.Stdin
		ed.Stdout = os.Stdout
		ed.Stderr = os.Stderr

		if err := ed.Run(); err != nil {
			return fmt.Errorf("failed to open editor: %w", err)
		}
		return nil
	},
}

func init() {
	configAddCmd.Flags().StringVar(&flagFrom, "from", "", "import an existing YAML file as the new profile")
	configRemoveCmd.Flags().BoolVarP(&flagForceRemove, "force", "f", false, "remove the active config without asking")

	configCmd.AddCommand(
		configInitCmd,
		configAddCmd,
		configListCmd,
		configSwitchCmd,
		configRenameCmd,
		configRemoveCmd,
		configResetCmd,
		configEditCmd,
	)
	rootCmd.AddCommand(configCmd)
}

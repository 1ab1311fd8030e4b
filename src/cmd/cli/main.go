// Command cli manages the preset store from the terminal: list, create,
// edit, toggle, and delete presets without touching the game.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"relic-keeper/src/config"
	"relic-keeper/src/preset"
	"relic-keeper/src/vocab"
)

type cliOptions struct {
	presetPath string
	deepnight  bool
	jsonOutput bool
}

func main() {
	if err := runWithArgs(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	if len(args) > 1 {
		cmd.SetArgs(args[1:])
	}
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "preset-tool",
		Short:         "Manage relic-keeper presets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.presetPath, "presets", "", "Path to presets.json (default from config)")
	root.PersistentFlags().BoolVar(&opts.deepnight, "deepnight", false, "Operate on the deepnight preset group")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	root.AddCommand(
		newListCmd(opts),
		newCreateCmd(opts),
		newUpdateCmd(opts),
		newDeleteCmd(opts),
		newToggleCmd(opts),
		newGeneralCmd(opts),
		newBlacklistCmd(opts),
	)
	return root
}

func (o *cliOptions) open() (*preset.Store, vocab.Mode, error) {
	path := o.presetPath
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, "", err
		}
		path = cfg.PresetPath
	}
	store, err := preset.Open(path)
	if err != nil {
		return nil, "", err
	}
	mode := vocab.ModeNormal
	if o.deepnight {
		mode = vocab.ModeDeepnight
	}
	return store, mode, nil
}

func newListCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List presets for the selected group",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, mode, err := opts.open()
			if err != nil {
				return err
			}

			general := store.General(mode)
			dedicated := store.ActiveDedicated(mode)

			if opts.jsonOutput {
				out := map[string]interface{}{"general": general, "dedicated": dedicated}
				if mode == vocab.ModeDeepnight {
					out["blacklist"] = store.Blacklist()
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			printPreset(cmd, general)
			for _, p := range dedicated {
				printPreset(cmd, p)
			}
			if mode == vocab.ModeDeepnight {
				printPreset(cmd, store.Blacklist())
			}
			return nil
		},
	}
}

func printPreset(cmd *cobra.Command, p *preset.Preset) {
	if p == nil {
		return
	}
	marker := " "
	if p.IsActive {
		marker = "*"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %-36s %-12s %s\n", marker, p.ID, p.Name, strings.Join(p.Affixes, "、"))
}

func newCreateCmd(opts *cliOptions) *cobra.Command {
	var name string
	var affixes []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a dedicated preset",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, mode, err := opts.open()
			if err != nil {
				return err
			}
			id, err := store.CreateDedicated(mode, name, affixes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Preset name")
	cmd.Flags().StringSliceVar(&affixes, "affix", nil, "Affix entry (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newUpdateCmd(opts *cliOptions) *cobra.Command {
	var name string
	var affixes []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a dedicated preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, mode, err := opts.open()
			if err != nil {
				return err
			}
			var namePtr *string
			if cmd.Flags().Changed("name") {
				namePtr = &name
			}
			return store.UpdateDedicated(mode, args[0], namePtr, affixes)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringSliceVar(&affixes, "affix", nil, "Replacement affix entry (repeatable)")
	return cmd
}

func newDeleteCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a dedicated preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, mode, err := opts.open()
			if err != nil {
				return err
			}
			return store.DeleteDedicated(mode, args[0])
		},
	}
}

func newToggleCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Toggle a preset's active flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, mode, err := opts.open()
			if err != nil {
				return err
			}
			return store.ToggleActive(mode, args[0])
		},
	}
}

func newGeneralCmd(opts *cliOptions) *cobra.Command {
	var affixes []string
	cmd := &cobra.Command{
		Use:   "general",
		Short: "Replace the general preset's affix list",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, mode, err := opts.open()
			if err != nil {
				return err
			}
			return store.UpdateGeneral(mode, affixes)
		},
	}
	cmd.Flags().StringSliceVar(&affixes, "affix", nil, "Affix entry (repeatable)")
	return cmd
}

func newBlacklistCmd(opts *cliOptions) *cobra.Command {
	var affixes []string
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Replace the deepnight blacklist",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.open()
			if err != nil {
				return err
			}
			return store.UpdateBlacklist(affixes)
		},
	}
	cmd.Flags().StringSliceVar(&affixes, "affix", nil, "Affix entry (repeatable)")
	return cmd
}

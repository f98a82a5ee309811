package cli

import (
	"fmt"
	"os"
	"sort"

	apperrors "github.com/ZanzyTHEbar/leadpulse/internal/errors"
	"github.com/ZanzyTHEbar/leadpulse/internal/scoring"
	"github.com/spf13/cobra"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage scoring profiles",
	}
	cmd.AddCommand(newConfigValidateCmd(opts), newConfigInitCmd(opts), newConfigShowCmd(opts))
	return cmd
}

func newConfigValidateCmd(opts *options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a scoring profile",
		Long:  "Load a profile (by name or from --file) and report every problem that would stop the engine from using it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg    scoring.Config
				err    error
				source = opts.profile
			)
			if file != "" {
				source = file
				data, readErr := os.ReadFile(file)
				if readErr != nil {
					return fmt.Errorf("read profile: %w", readErr)
				}
				cfg, err = scoring.DecodeProfile(data)
			} else {
				cfg, err = opts.profiles().LoadProfile(opts.profile)
			}
			if err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				problems := apperrors.ToAppError(err).Fields
				if opts.text() {
					keys := make([]string, 0, len(problems))
					for key := range problems {
						keys = append(keys, key)
					}
					sort.Strings(keys)
					for _, key := range keys {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, problems[key])
					}
				} else {
					_ = writeJSON(cmd.OutOrStdout(), map[string]interface{}{
						"valid":    false,
						"profile":  source,
						"problems": problems,
					})
				}
				return fmt.Errorf("profile %s is invalid: %d problems", source, len(problems))
			}

			if opts.text() {
				fmt.Fprintf(cmd.OutOrStdout(), "profile %s is valid (version %s)\n", source, cfg.Version())
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"valid":   true,
				"profile": source,
				"version": cfg.Version(),
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Validate this YAML file instead of a stored profile")
	return cmd
}

func newConfigInitCmd(opts *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the built-in profile under a name",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := opts.profiles()
			if !force {
				if _, err := os.Stat(store.Path(opts.profile)); err == nil {
					return fmt.Errorf("profile %s already exists, use --force to overwrite", opts.profile)
				}
			}

			cfg := scoring.DefaultConfig()
			if err := store.SaveProfile(opts.profile, cfg); err != nil {
				return err
			}

			if opts.text() {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", store.Path(opts.profile))
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"ok":      true,
				"path":    store.Path(opts.profile),
				"version": cfg.Version(),
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing profile")
	return cmd
}

func newConfigShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective profile as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.profiles().LoadProfile(opts.profile)
			if err != nil {
				return err
			}
			data, err := scoring.EncodeProfile(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

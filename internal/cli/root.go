// Package cli implements the leadctl commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/ZanzyTHEbar/leadpulse/internal/config"
	"github.com/ZanzyTHEbar/leadpulse/internal/database"
	"github.com/ZanzyTHEbar/leadpulse/internal/monitoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/scoring"
	"github.com/spf13/cobra"
)

// options are the persistent flags shared by every command
type options struct {
	dataDir    string
	profileDir string
	profile    string
	format     string
	verbose    bool

	env *config.Config
}

// NewRootCmd builds the leadctl command tree
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "leadctl",
		Short:         "Score and prioritize leads and conversations",
		Long:          "leadctl runs the LeadPulse scoring engine from the command line: score files of records, manage scoring profiles and seed the record store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.dataDir, "data-dir", "d", "", "Record store directory (default: $DATA_DIR or ./data)")
	flags.StringVar(&opts.profileDir, "profile-dir", "", "Scoring profile directory (default: $PROFILE_DIR or <data-dir>/profiles)")
	flags.StringVarP(&opts.profile, "profile", "p", "", "Scoring profile name (default: $SCORING_PROFILE or default)")
	flags.StringVarP(&opts.format, "format", "f", "json", "Output format: json or text")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log engine activity to stderr")

	root.AddCommand(
		newScoreCmd(opts),
		newPrioritizeCmd(opts),
		newSeedCmd(opts),
		newQueueCmd(opts),
		newConfigCmd(opts),
		newTokenCmd(opts),
	)

	return root
}

// resolve fills unset flags from the environment
func (o *options) resolve() error {
	if o.format != "json" && o.format != "text" {
		return fmt.Errorf("unknown format %q: use json or text", o.format)
	}

	env, err := config.Load()
	if err != nil {
		return err
	}
	o.env = env

	if o.dataDir == "" {
		o.dataDir = env.DataDir
	}
	if o.profileDir == "" {
		// an explicit PROFILE_DIR beats the one derived from --data-dir
		if env.ProfileDir != filepath.Join(env.DataDir, "profiles") {
			o.profileDir = env.ProfileDir
		} else {
			o.profileDir = filepath.Join(o.dataDir, "profiles")
		}
	}
	if o.profile == "" {
		o.profile = env.ScoringProfile
	}
	return nil
}

func (o *options) profiles() *scoring.ProfileStore {
	return scoring.NewProfileStore(o.profileDir)
}

// engine builds an engine from the selected profile
func (o *options) engine() (*scoring.Engine, error) {
	cfg, err := o.profiles().LoadProfile(o.profile)
	if err != nil {
		return nil, err
	}
	e, err := scoring.NewEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", o.profile, err)
	}
	return e, nil
}

func (o *options) openRepository() (*database.DB, *database.Repository, error) {
	db, err := database.NewDB(o.dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open record store: %w", err)
	}
	return db, database.NewRepository(db), nil
}

func (o *options) logger(w io.Writer) *monitoring.Logger {
	if o.verbose {
		return monitoring.NewLoggerWithWriter(w, slog.LevelDebug)
	}
	return monitoring.NewLoggerWithWriter(w, slog.LevelWarn)
}

func (o *options) text() bool { return o.format == "text" }

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

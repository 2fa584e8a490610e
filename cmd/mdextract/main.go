package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coolbeans/mdextract/pkg/config"
	"github.com/coolbeans/mdextract/pkg/extract"
	"github.com/coolbeans/mdextract/pkg/grammar"
)

var version = "0.1.0"

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	cfg        *config.Config
	logger     zerolog.Logger
}

func main() {
	if err := newRootCmd(&app{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mdextract",
		Short: "Extract documentation blocks from source comments",
		Long: `mdextract reads source files and extracts the documentation written
in specially marked comments:

  /*** Heading: level 2 block */
  /** heading : subheading
   * body text
   */

Blocks are written as JSON or YAML with their heading, subheading, body
and the source lines they were found on.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default ./mdextract.yaml or ~/.config/mdextract/mdextract.yaml)")
	flags.StringP("format", "f", "", "Output format: json or yaml")
	flags.StringP("dialect", "d", "", "Comment dialect from the grammar registry")
	flags.String("grammar", "", "YAML grammar file, overrides --dialect")
	flags.String("grammar-dir", "", "Directory of extra YAML grammars")
	flags.BoolP("warnings", "w", false, "Report dropped blocks on stderr")
	flags.BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(extractCmd(a))
	rootCmd.AddCommand(watchCmd(a))
	rootCmd.AddCommand(grammarCmd(a))
	return rootCmd
}

// setup loads the configuration and applies the flags set on the command line.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("dialect") {
		cfg.Grammar.Dialect, _ = flags.GetString("dialect")
	}
	if flags.Changed("grammar") {
		cfg.Grammar.File, _ = flags.GetString("grammar")
	}
	if flags.Changed("grammar-dir") {
		cfg.Grammar.Dir, _ = flags.GetString("grammar-dir")
	}
	if flags.Changed("warnings") {
		cfg.Warnings, _ = flags.GetBool("warnings")
	}
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	return nil
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		Level(level).
		With().Timestamp().Logger()
}

// registry returns the dialect registry with the configured directory loaded.
func (a *app) registry() (*grammar.Registry, error) {
	reg := grammar.NewRegistry()
	reg.SetLogger(a.logger)
	if a.cfg.Grammar.Dir != "" {
		if err := reg.LoadDirectory(a.cfg.Grammar.Dir); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// loadGrammar resolves the grammar selected by the configuration.
func (a *app) loadGrammar() (*grammar.Grammar, error) {
	if a.cfg.Grammar.File != "" {
		def, err := grammar.LoadFile(a.cfg.Grammar.File)
		if err != nil {
			return nil, err
		}
		a.logger.Debug().Str("grammar", def.Name).Str("file", a.cfg.Grammar.File).Msg("loaded grammar file")
		return def.Grammar(), nil
	}

	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	return reg.Grammar(a.cfg.Grammar.Dialect)
}

// options builds the extraction options for the configured grammar.
func (a *app) options() (extract.Options, error) {
	g, err := a.loadGrammar()
	if err != nil {
		return extract.Options{}, err
	}

	opts := extract.Options{Grammar: g}
	if a.cfg.Warnings {
		opts.Warn = warnSink(a.logger)
	}
	return opts, nil
}

// warnSink reports dropped blocks through the logger.
func warnSink(logger zerolog.Logger) extract.WarnFunc {
	return func(message, filename string, line int) {
		logger.Warn().Str("file", filename).Int("line", line).Msg(message)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/fsnotify.v1"

	"github.com/coolbeans/mdextract/pkg/grammar"
)

func watchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch files...",
		Short: "Extract again whenever a source file changes",
		Long: `Watch source files and write the extracted blocks of all of them each
time one is written, created or replaced. Every run parses all files from
scratch.

Example:
  mdextract watch --format yaml lib/*.js`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			return a.watch(ctx, cmd, args)
		},
	}
}

func (a *app) watch(ctx context.Context, cmd *cobra.Command, files []string) error {
	opts, err := a.options()
	if err != nil {
		return err
	}

	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		if f == stdinName {
			return fmt.Errorf("cannot watch standard input")
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", f, err)
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Directories are watched so that editors replacing the file on save
	// keep being tracked.
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching directory %s: %w", dir, err)
		}
	}

	run := func() {
		doc, err := extractFiles(files, opts, nil)
		if err != nil {
			a.logger.Error().Err(err).Msg("extraction failed")
			return
		}
		if err := writeBlocks(cmd.OutOrStdout(), doc, a.cfg.Output); err != nil {
			a.logger.Error().Err(err).Msg("writing blocks failed")
			return
		}
		a.logger.Debug().Int("blocks", doc.Len()).Msg("extracted")
	}
	run()

	grammarChanged, stopGrammars := a.watchGrammars()
	defer stopGrammars()

	debounce := time.NewTimer(a.cfg.Watch.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	a.logger.Info().Int("files", len(files)).Msg("watching for changes")
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			a.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("change detected")
			debounce.Reset(a.cfg.Watch.Debounce)

		case <-debounce.C:
			run()

		case g := <-grammarChanged:
			opts.Grammar = g
			run()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Error().Err(err).Msg("watcher error")
		}
	}
}

// watchGrammars reloads the configured dialect when its file in the grammar
// directory changes. The returned channel is nil when there is nothing to watch.
func (a *app) watchGrammars() (<-chan *grammar.Grammar, func()) {
	noop := func() {}
	if a.cfg.Grammar.File != "" || a.cfg.Grammar.Dir == "" {
		return nil, noop
	}

	reg, err := a.registry()
	if err != nil {
		a.logger.Warn().Err(err).Msg("grammar directory not watched")
		return nil, noop
	}

	dialect := a.cfg.Grammar.Dialect
	changed := make(chan *grammar.Grammar, 1)
	reg.SetOnChange(func(event string, def *grammar.Definition) {
		if def == nil || def.Name != dialect {
			return
		}
		g, err := reg.Grammar(dialect)
		if err != nil {
			a.logger.Warn().Err(err).Str("event", event).Msg("keeping previous grammar")
			return
		}
		select {
		case changed <- g:
		default:
		}
	})

	if err := reg.Watch(); err != nil {
		a.logger.Debug().Err(err).Msg("grammar directory not watched")
		return nil, noop
	}
	return changed, reg.StopWatch
}

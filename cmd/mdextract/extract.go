package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/coolbeans/mdextract/pkg/config"
	"github.com/coolbeans/mdextract/pkg/extract"
)

// stdinName is the file argument that reads standard input.
const stdinName = "-"

func extractCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [files...]",
		Short: "Extract documentation blocks from source files",
		Long: `Extract documentation blocks from one or more source files and write
them to stdout. Standard input is read when no file is given or the file
is "-". Blocks of all files are written in argument order.

Example:
  mdextract extract lib/*.js
  mdextract extract --format yaml --stats src/parser.c
  cat script.sh | mdextract extract --dialect hash`,
		RunE: func(cmd *cobra.Command, args []string) error {
			showStats, _ := cmd.Flags().GetBool("stats")

			opts, err := a.options()
			if err != nil {
				return err
			}

			doc, err := extractFiles(args, opts, cmd.InOrStdin())
			if err != nil {
				return err
			}

			if err := writeBlocks(cmd.OutOrStdout(), doc, a.cfg.Output); err != nil {
				return err
			}

			if showStats {
				stats := doc.Statistics()
				fmt.Fprintf(cmd.ErrOrStderr(), "%d blocks (%d h2, %d h3, %d with code) from %d files\n",
					stats.Blocks, stats.H2, stats.H3, stats.WithCode, stats.Files)
			}
			return nil
		},
	}

	cmd.Flags().Bool("stats", false, "Print block statistics to stderr")
	return cmd
}

// extractFiles parses every file into one Document, in argument order.
func extractFiles(files []string, opts extract.Options, stdin io.Reader) (*extract.Document, error) {
	doc := extract.New(opts)
	if len(files) == 0 {
		files = []string{stdinName}
	}

	for _, name := range files {
		if name == stdinName {
			if err := doc.ParseReader(stdin, ""); err != nil {
				return nil, err
			}
			continue
		}

		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read source: %w", err)
		}
		doc.Parse(string(data), name)
	}
	return doc, nil
}

// blockList is the serialized form of a document.
type blockList struct {
	Blocks []*extract.Block `json:"blocks" yaml:"blocks"`
}

// writeBlocks encodes the blocks of doc in the configured format.
func writeBlocks(w io.Writer, doc *extract.Document, out config.OutputConfig) error {
	list := blockList{Blocks: doc.Blocks()}

	switch out.Format {
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		if out.Indent > 0 {
			enc.SetIndent(out.Indent)
		}
		if err := enc.Encode(list); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", strings.Repeat(" ", out.Indent))
		if err := enc.Encode(list); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", out.Format)
	}
}

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coolbeans/mdextract/pkg/grammar"
)

func grammarCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grammar",
		Short: "Inspect comment dialects",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the available dialects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			return listDefinitions(cmd.OutOrStdout(), reg.List())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <dialect>",
		Short: "Show the compiled rules of a dialect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			def, ok := reg.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: %q", grammar.ErrDialectNotFound, args[0])
			}
			return showDefinition(cmd.OutOrStdout(), def)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check <file.yaml>",
		Short: "Validate and compile a YAML grammar file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := grammar.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: ok (%d rules)\n", def.Name, def.Version, len(def.Rules))
			return nil
		},
	})

	return cmd
}

func listDefinitions(w io.Writer, defs []*grammar.Definition) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tSOURCE\tDESCRIPTION")
	for _, def := range defs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", def.Name, def.Version, def.Origin(), def.Description)
	}
	return tw.Flush()
}

func showDefinition(w io.Writer, def *grammar.Definition) error {
	fmt.Fprintf(w, "%s %s\n", def.Name, def.Version)
	if def.Description != "" {
		fmt.Fprintf(w, "%s\n", def.Description)
	}

	g := def.Grammar()
	for _, name := range g.Rules() {
		expr, _ := g.Expr(name)
		fmt.Fprintf(w, "  %-6s %s\n", name, expr)
	}
	fmt.Fprintf(w, "  %-6s (no rule matched)\n", grammar.TagElse)
	return nil
}

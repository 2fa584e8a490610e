// Package extract pulls documentation blocks out of specially marked comments
// in source text.
//
// A block starts at a heading comment and collects the comment lines that
// follow it until a blank line, the next heading or the end of the source:
//
//	/***
//	 * parse : .parse(src)
//	 * parses text.
//	 */
//	function parse(src) {}
//
// yields a level 2 block with heading "parse", subheading ".parse(src)",
// body "parses text.", docline 1 and codeline 5.
package extract

import (
	"fmt"
	"io"

	"github.com/coolbeans/mdextract/pkg/grammar"
)

// WarnFunc is notified when a block is dropped, with the file name and the
// line the block started on.
type WarnFunc func(message, filename string, line int)

// Options configures a Document. The zero value uses the default grammar and
// no warning sink.
type Options struct {
	// Grammar classifies source lines. Defaults to grammar.Default().
	Grammar *grammar.Grammar

	// Warn, if set, receives a notice for every dropped block.
	Warn WarnFunc
}

// Document accumulates the blocks of one or more sources. A Document is not
// safe for concurrent use; separate Documents share no state.
type Document struct {
	options Options
	blocks  []*Block
}

// New creates an empty Document.
func New(options Options) *Document {
	if options.Grammar == nil {
		options.Grammar = grammar.Default()
	}
	return &Document{options: options}
}

// Extract returns a Document holding the blocks of src.
func Extract(src string, options Options) *Document {
	doc := New(options)
	doc.Parse(src, "")
	return doc
}

// Parse appends the blocks found in src, in line order. Blocks are tagged
// with filename when it is not empty.
func (d *Document) Parse(src, filename string) {
	a := newAssembler(d.options.Grammar, filename, d.options.Warn)
	d.blocks = append(d.blocks, a.run(src)...)
}

// ParseReader reads all of r and parses it as one source.
func (d *Document) ParseReader(r io.Reader, filename string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading %s: %w", displayName(filename), err)
	}
	d.Parse(string(data), filename)
	return nil
}

// Blocks returns the extracted blocks in parse order.
func (d *Document) Blocks() []*Block {
	blocks := make([]*Block, len(d.blocks))
	copy(blocks, d.blocks)
	return blocks
}

// Len returns the number of extracted blocks.
func (d *Document) Len() int {
	return len(d.blocks)
}

// Find returns the first block with the given heading, or nil if none.
func (d *Document) Find(heading string) *Block {
	for _, b := range d.blocks {
		if b.Heading == heading {
			return b
		}
	}
	return nil
}

// Statistics summarizes the extracted blocks.
type Statistics struct {
	Blocks   int `json:"blocks" yaml:"blocks"`
	H2       int `json:"h2" yaml:"h2"`
	H3       int `json:"h3" yaml:"h3"`
	WithCode int `json:"with_code" yaml:"with_code"`
	Files    int `json:"files" yaml:"files"`
}

// Statistics returns statistics about the extracted blocks.
func (d *Document) Statistics() Statistics {
	stats := Statistics{Blocks: len(d.blocks)}
	files := make(map[string]bool)

	for _, b := range d.blocks {
		switch b.Level {
		case LevelH2:
			stats.H2++
		case LevelH3:
			stats.H3++
		}
		if b.HasCodeLine() {
			stats.WithCode++
		}
		if b.Filename != "" {
			files[b.Filename] = true
		}
	}

	stats.Files = len(files)
	return stats
}

func displayName(filename string) string {
	if filename == "" {
		return "input"
	}
	return filename
}

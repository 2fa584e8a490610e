package extract

import (
	"strings"

	"github.com/coolbeans/mdextract/pkg/grammar"
)

// Warning messages passed to a WarnFunc when a block is dropped.
const (
	WarnNoLines   = "no lines found"
	WarnNoHeading = "no heading found"
)

// pendingBlock accumulates the text of the block being read.
type pendingBlock struct {
	level   Level
	docLine int
	lines   []string
}

// assembler turns the classified lines of one source into blocks. It is
// either idle (pending == nil) or has a block open.
type assembler struct {
	grammar  *grammar.Grammar
	filename string
	warn     WarnFunc

	blocks  []*Block
	pending *pendingBlock
}

func newAssembler(g *grammar.Grammar, filename string, warn WarnFunc) *assembler {
	return &assembler{
		grammar:  g,
		filename: filename,
		warn:     warn,
	}
}

// run consumes every line of src and returns the finalized blocks.
func (a *assembler) run(src string) []*Block {
	for i, line := range strings.Split(src, "\n") {
		a.consume(i+1, line)
	}
	a.flush()
	return a.blocks
}

func (a *assembler) consume(lineNo int, line string) {
	m := a.grammar.Classify(line)

	switch m.Tag {
	case grammar.TagH2:
		a.flush()
		a.open(LevelH2, m.Capture("doc"), lineNo)
	case grammar.TagH3:
		a.flush()
		a.open(LevelH3, m.Capture("doc"), lineNo)
	case grammar.TagBlank:
		a.flush()
	case grammar.TagDoc:
		if a.pending != nil {
			a.pending.lines = append(a.pending.lines, m.Capture("doc"))
		}
	case grammar.TagElse:
		if last := a.lastBlock(); last != nil && !last.HasCodeLine() {
			last.CodeLine = lineNo
		}
	}
}

func (a *assembler) open(level Level, text string, lineNo int) {
	a.pending = &pendingBlock{
		level:   level,
		docLine: lineNo,
		lines:   []string{text},
	}
}

func (a *assembler) lastBlock() *Block {
	if len(a.blocks) == 0 {
		return nil
	}
	return a.blocks[len(a.blocks)-1]
}

// flush finalizes the open block, dropping it when it has no text or no
// heading. It does nothing when idle.
func (a *assembler) flush() {
	p := a.pending
	if p == nil {
		return
	}
	a.pending = nil

	text := strings.TrimSpace(strings.Join(p.lines, "\n"))
	if text == "" {
		a.notify(WarnNoLines, p.docLine)
		return
	}

	parsed := parseText(text)
	if parsed.heading == "" {
		a.notify(WarnNoHeading, p.docLine)
		return
	}

	a.blocks = append(a.blocks, &Block{
		Level:      p.level,
		Heading:    parsed.heading,
		Subheading: parsed.subheading,
		Body:       parsed.body,
		DocLine:    p.docLine,
		Filename:   a.filename,
	})
}

func (a *assembler) notify(message string, line int) {
	if a.warn != nil {
		a.warn(message, a.filename, line)
	}
}

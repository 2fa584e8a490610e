package extract

// Level is the heading level of a block.
type Level int

const (
	// LevelH2 blocks are opened by the three-star marker.
	LevelH2 Level = 2

	// LevelH3 blocks are opened by the two-star marker.
	LevelH3 Level = 3
)

// Block is one documentation unit extracted from a source.
type Block struct {
	Level      Level  `json:"level" yaml:"level"`
	Heading    string `json:"heading" yaml:"heading"`
	Subheading string `json:"subheading,omitempty" yaml:"subheading,omitempty"`
	Body       string `json:"body" yaml:"body"`

	// DocLine is the 1-indexed line where the comment starts.
	DocLine int `json:"docline" yaml:"docline"`

	// CodeLine is the first non-comment line after the block, or 0 if none
	// was seen before the next block.
	CodeLine int `json:"codeline,omitempty" yaml:"codeline,omitempty"`

	Filename string `json:"filename,omitempty" yaml:"filename,omitempty"`
}

// HasCodeLine reports whether a code line has been associated with the block.
func (b *Block) HasCodeLine() bool {
	return b.CodeLine > 0
}

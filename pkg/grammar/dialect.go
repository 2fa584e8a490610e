package grammar

// DefaultDialect is the name of the block comment dialect used when none is given.
const DefaultDialect = "c"

// DefaultRules is the rule evaluation order. h2 is tried before h3 because
// its opening marker starts with h3's, and blank before doc so that a doc line
// without text ends the block.
var DefaultRules = []string{"h2", "h3", "blank", "doc"}

// CPatterns describes documentation in block comments:
//
//	/*** Heading: level 2 */
//	/** Heading : subheading
//	 * body text
//	 */
var CPatterns = PatternSet{
	"space":      `\s`,
	"string":     `.*?`,
	"eol":        `(\s*%{endcomment})?\s*`,
	"h2":         `\s*%{h2prefix}\s*%{string:doc}%{eol}`,
	"h3":         `\s*%{h3prefix}\s*%{string:doc}%{eol}`,
	"doc":        `\s*%{docprefix}\s?%{string:doc}%{eol}`,
	"blank":      `%{eol}`,
	"h2prefix":   `/\*\*\*`,
	"h3prefix":   `/\*\*`,
	"docprefix":  `\*`,
	"endcomment": `\*/`,
}

// HashPatterns describes documentation in hash line comments:
//
//	### Heading: level 2
//	## Heading : subheading
//	# body text
var HashPatterns = PatternSet{
	"string":    `.*?`,
	"eol":       `\s*`,
	"h2":        `\s*%{h2prefix}\s*%{string:doc}%{eol}`,
	"h3":        `\s*%{h3prefix}\s*%{string:doc}%{eol}`,
	"doc":       `\s*%{docprefix}\s?%{string:doc}%{eol}`,
	"blank":     `%{eol}`,
	"h2prefix":  `###`,
	"h3prefix":  `##`,
	"docprefix": `#`,
}

var defaultGrammar = MustCompile(CPatterns, DefaultRules)

// Default returns the compiled block comment grammar.
func Default() *Grammar {
	return defaultGrammar
}

// builtinDefinitions are registered by NewRegistry.
func builtinDefinitions() []*Definition {
	return []*Definition{
		{
			Name:        DefaultDialect,
			Version:     "1.0.0",
			Description: "Block comments: /*** h2, /** h3, * body, */ close",
			Patterns:    CPatterns,
			Rules:       DefaultRules,
			Builtin:     true,
			compiled:    defaultGrammar,
		},
		{
			Name:        "hash",
			Version:     "1.0.0",
			Description: "Hash line comments: ### h2, ## h3, # body",
			Patterns:    HashPatterns,
			Rules:       DefaultRules,
			Builtin:     true,
		},
	}
}

// builtin returns a fresh compiled copy of the named built-in dialect, or nil.
func builtin(name string) *Definition {
	for _, def := range builtinDefinitions() {
		if def.Name != name {
			continue
		}
		if err := def.Compile(); err != nil {
			return nil
		}
		return def
	}
	return nil
}

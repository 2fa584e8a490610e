// Package grammar compiles small line-classification grammars built from named,
// composable regular expression fragments and classifies source lines against them.
package grammar

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Tag identifies the classification of a single line.
type Tag int

const (
	// TagElse is returned when no rule matches the line.
	TagElse Tag = iota

	// TagH2 opens a level 2 block.
	TagH2

	// TagH3 opens a level 3 block.
	TagH3

	// TagBlank terminates the open block.
	TagBlank

	// TagDoc carries text for the open block.
	TagDoc
)

var tagNames = map[Tag]string{
	TagElse:  "else",
	TagH2:    "h2",
	TagH3:    "h3",
	TagBlank: "blank",
	TagDoc:   "doc",
}

// String returns the rule name of the tag.
func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tag(%d)", int(t))
}

// ParseTag maps a rule name to its Tag. The "else" tag cannot be used as a
// rule since it is what classification falls back to.
func ParseTag(name string) (Tag, bool) {
	for tag, n := range tagNames {
		if n == name && tag != TagElse {
			return tag, true
		}
	}
	return TagElse, false
}

var (
	// ErrCycle is returned when a pattern references itself, directly or transitively.
	ErrCycle = errors.New("cyclic pattern reference")

	// ErrUnknownPattern is returned when a placeholder names an undefined pattern.
	ErrUnknownPattern = errors.New("unknown pattern")

	// ErrUnknownRule is returned when a rule name is not a known tag.
	ErrUnknownRule = errors.New("unknown rule")
)

// CycleError reports the chain of references that loops back on itself.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// PatternSet maps a pattern name to its template. Templates are regular
// expression text that may contain placeholders: %{ref} is replaced with the
// resolved template of ref, and %{ref:label} wraps it in a capture group
// named label.
type PatternSet map[string]string

// placeholderPattern matches %{ref} and %{ref:label}.
var placeholderPattern = regexp.MustCompile(`%\{(\w+)(?::(\w+))?\}`)

// LineMatch is the result of classifying one line.
type LineMatch struct {
	Tag      Tag
	Captures map[string]string
}

// Capture returns the named capture, or "" if the rule did not capture it.
func (m LineMatch) Capture(name string) string {
	return m.Captures[name]
}

type rule struct {
	name string
	tag  Tag
	re   *regexp.Regexp
}

// Grammar is a compiled set of rules. A Grammar is immutable after Compile
// and safe for concurrent use.
type Grammar struct {
	rules []rule
}

// Compile resolves every placeholder in patterns and compiles each named rule
// into a full-line matcher. Rules are tried by Classify in the order given.
// Every pattern is resolved, referenced by a rule or not, so a cyclic or
// dangling reference anywhere in the set fails compilation.
func Compile(patterns PatternSet, rules []string) (*Grammar, error) {
	r := &resolver{
		patterns: patterns,
		resolved: make(map[string]string),
		visiting: make(map[string]bool),
	}

	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := r.resolve(name); err != nil {
			return nil, fmt.Errorf("resolving pattern %q: %w", name, err)
		}
	}

	g := &Grammar{}
	seen := make(map[Tag]bool)
	for _, name := range rules {
		tag, ok := ParseTag(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRule, name)
		}
		if seen[tag] {
			return nil, fmt.Errorf("rule %q declared more than once", name)
		}
		seen[tag] = true

		expr, err := r.resolve(name)
		if err != nil {
			return nil, fmt.Errorf("resolving rule %q: %w", name, err)
		}

		re, err := regexp.Compile(`^(?:` + expr + `)$`)
		if err != nil {
			return nil, fmt.Errorf("compiling rule %q pattern %q: %w", name, expr, err)
		}
		g.rules = append(g.rules, rule{name: name, tag: tag, re: re})
	}

	return g, nil
}

// MustCompile is like Compile but panics if the grammar cannot be compiled.
func MustCompile(patterns PatternSet, rules []string) *Grammar {
	g, err := Compile(patterns, rules)
	if err != nil {
		panic("grammar: Compile: " + err.Error())
	}
	return g
}

// Rules returns the rule names in evaluation order.
func (g *Grammar) Rules() []string {
	names := make([]string, len(g.rules))
	for i, r := range g.rules {
		names[i] = r.name
	}
	return names
}

// Expr returns the compiled regular expression of a rule.
func (g *Grammar) Expr(name string) (string, bool) {
	for _, r := range g.rules {
		if r.name == name {
			return r.re.String(), true
		}
	}
	return "", false
}

// Classify returns the first rule that matches the whole line, in
// declaration order. Lines that match no rule are tagged TagElse.
func (g *Grammar) Classify(line string) LineMatch {
	for _, r := range g.rules {
		loc := r.re.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}

		captures := make(map[string]string)
		for i, name := range r.re.SubexpNames() {
			if name == "" || loc[2*i] < 0 {
				continue
			}
			if _, ok := captures[name]; ok {
				continue
			}
			captures[name] = line[loc[2*i]:loc[2*i+1]]
		}
		return LineMatch{Tag: r.tag, Captures: captures}
	}

	return LineMatch{Tag: TagElse}
}

// resolver expands pattern templates, memoizing each pattern and tracking the
// current reference chain to reject cycles.
type resolver struct {
	patterns PatternSet
	resolved map[string]string
	visiting map[string]bool
	stack    []string
}

func (r *resolver) resolve(name string) (string, error) {
	if expr, ok := r.resolved[name]; ok {
		return expr, nil
	}
	if r.visiting[name] {
		path := append([]string{}, r.stack[indexOf(r.stack, name):]...)
		return "", &CycleError{Path: append(path, name)}
	}

	template, ok := r.patterns[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPattern, name)
	}

	r.visiting[name] = true
	r.stack = append(r.stack, name)
	defer func() {
		delete(r.visiting, name)
		r.stack = r.stack[:len(r.stack)-1]
	}()

	var b strings.Builder
	last := 0
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(template, -1) {
		b.WriteString(template[last:m[0]])
		last = m[1]

		ref := template[m[2]:m[3]]
		expr, err := r.resolve(ref)
		if err != nil {
			return "", err
		}

		if m[4] >= 0 {
			fmt.Fprintf(&b, "(?P<%s>%s)", template[m[4]:m[5]], expr)
		} else {
			b.WriteString(expr)
		}
	}
	b.WriteString(template[last:])

	r.resolved[name] = b.String()
	return r.resolved[name], nil
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return 0
}

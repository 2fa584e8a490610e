package extract

import (
	"regexp"
	"strings"
)

var (
	// "Heading:" with nothing after the colon
	headingOnlyPattern = regexp.MustCompile(`^([^:]*):$`)

	// "Heading : subheading"
	subheadingPattern = regexp.MustCompile(`^(.*?) : (.*)$`)

	// "Heading: first body line"
	headingInlinePattern = regexp.MustCompile(`^([^:]*): ?(.*)$`)
)

// parsedText is the heading, subheading and body derived from a block's text.
type parsedText struct {
	heading    string
	subheading string
	body       string
}

// parseText splits the joined text of a block. Only the first line can carry
// the heading; every following line is body text kept as is.
func parseText(text string) parsedText {
	lines := strings.Split(text, "\n")

	var p parsedText
	var bodyLines []string

	first := lines[0]
	if m := headingOnlyPattern.FindStringSubmatch(first); m != nil {
		p.heading = m[1]
	} else if m := subheadingPattern.FindStringSubmatch(first); m != nil {
		p.heading = m[1]
		p.subheading = m[2]
	} else if m := headingInlinePattern.FindStringSubmatch(first); m != nil {
		p.heading = m[1]
		bodyLines = append(bodyLines, m[2])
	} else {
		bodyLines = append(bodyLines, first)
	}

	bodyLines = append(bodyLines, lines[1:]...)
	p.body = strings.Join(bodyLines, "\n")
	return p
}

package report

import "strings"

// SectionPrefix starts every level-two heading line. It is the boundary the
// merge step splits documents on.
const SectionPrefix = "## "

// Section is one level-two heading and the raw text up to the next one.
// Body excludes the newline that separates it from the following heading.
type Section struct {
	Heading string
	Body    string
}

// Title returns the heading text without its marker.
func (s Section) Title() string {
	return strings.TrimPrefix(s.Heading, SectionPrefix)
}

// Document is a report split into the text before the first section and the
// sections in order.
type Document struct {
	Preamble string
	Sections []Section
}

// ParseDocument splits text on lines starting with "## ". String reverses it
// exactly, except that a final heading with nothing after it gains a newline.
func ParseDocument(text string) Document {
	lines := strings.Split(text, "\n")

	first := -1
	for i, line := range lines {
		if isHeading(line) {
			first = i
			break
		}
	}
	if first < 0 {
		return Document{Preamble: text}
	}

	doc := Document{}
	if first > 0 {
		doc.Preamble = strings.Join(lines[:first], "\n") + "\n"
	}

	start := first
	for i := first + 1; i <= len(lines); i++ {
		if i < len(lines) && !isHeading(lines[i]) {
			continue
		}
		doc.Sections = append(doc.Sections, Section{
			Heading: lines[start],
			Body:    strings.Join(lines[start+1:i], "\n"),
		})
		start = i
	}
	return doc
}

// String renders the document back to text.
func (d Document) String() string {
	var builder strings.Builder
	builder.WriteString(d.Preamble)
	for i, section := range d.Sections {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(section.Heading)
		builder.WriteString("\n")
		builder.WriteString(section.Body)
	}
	return builder.String()
}

// Find returns the first section whose heading satisfies match.
func (d Document) Find(match func(heading string) bool) (Section, bool) {
	for _, section := range d.Sections {
		if match(section.Heading) {
			return section, true
		}
	}
	return Section{}, false
}

func isHeading(line string) bool {
	return strings.HasPrefix(line, SectionPrefix)
}

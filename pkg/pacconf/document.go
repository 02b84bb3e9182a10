package pacconf

import (
	"fmt"
	"strings"
)

// lineKind classifies a single line of the configuration file.
type lineKind int

const (
	lineBlank lineKind = iota
	lineComment
	lineSection
	lineDirective
)

// line is one physical line of the file. Raw is kept verbatim so that an
// unmodified document renders back to the original bytes.
type line struct {
	raw  string
	kind lineKind

	// section is the section name for lineSection lines.
	section string

	// key and value are set for lineDirective lines. value is empty for
	// bare directives such as "Color".
	key      string
	value    string
	hasValue bool
}

// Directive is a single key/value entry inside a section. A Directive with
// an empty Value and HasValue=false renders as a bare key.
type Directive struct {
	Key      string
	Value    string
	HasValue bool
}

// KV builds a key/value directive.
func KV(key, value string) Directive {
	return Directive{Key: key, Value: value, HasValue: true}
}

// Document is an in-memory working copy of a configuration file. It is
// transient: callers parse, edit and render within a single operation and
// never cache it across operations.
type Document struct {
	lines           []line
	trailingNewline bool
	sectionOrder    []string
	sectionStartIdx map[string]int
}

// Parse reads a configuration document. It fails if the same section
// appears more than once, since duplicate sections make override order
// ambiguous for the toolchain.
func Parse(data []byte) (*Document, error) {
	text := string(data)
	trailing := strings.HasSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\n")

	doc := &Document{
		trailingNewline: trailing,
		sectionStartIdx: make(map[string]int),
	}

	if len(data) == 0 {
		return doc, nil
	}

	for i, raw := range strings.Split(text, "\n") {
		ln, err := classify(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if ln.kind == lineSection {
			if _, dup := doc.sectionStartIdx[ln.section]; dup {
				return nil, fmt.Errorf("line %d: duplicate section [%s]", i+1, ln.section)
			}
			doc.sectionStartIdx[ln.section] = len(doc.lines)
			doc.sectionOrder = append(doc.sectionOrder, ln.section)
		}
		doc.lines = append(doc.lines, ln)
	}

	return doc, nil
}

func classify(raw string) (line, error) {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return line{raw: raw, kind: lineBlank}, nil
	case strings.HasPrefix(trimmed, "#"):
		return line{raw: raw, kind: lineComment}, nil
	case strings.HasPrefix(trimmed, "["):
		if !strings.HasSuffix(trimmed, "]") {
			return line{}, fmt.Errorf("malformed section header %q", trimmed)
		}
		name := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
		if name == "" {
			return line{}, fmt.Errorf("empty section header")
		}
		return line{raw: raw, kind: lineSection, section: name}, nil
	default:
		if key, value, ok := strings.Cut(trimmed, "="); ok {
			return line{
				raw:      raw,
				kind:     lineDirective,
				key:      strings.TrimSpace(key),
				value:    strings.TrimSpace(value),
				hasValue: true,
			}, nil
		}
		return line{raw: raw, kind: lineDirective, key: trimmed}, nil
	}
}

// Render serializes the document back to bytes, preserving untouched lines
// verbatim.
func (d *Document) Render() []byte {
	if len(d.lines) == 0 {
		return []byte{}
	}
	parts := make([]string, len(d.lines))
	for i, ln := range d.lines {
		parts[i] = ln.raw
	}
	out := strings.Join(parts, "\n")
	if d.trailingNewline {
		out += "\n"
	}
	return []byte(out)
}

// Sections returns the section names in file order.
func (d *Document) Sections() []string {
	return append([]string(nil), d.sectionOrder...)
}

// HasSection reports whether the named section is present (uncommented).
func (d *Document) HasSection(name string) bool {
	_, ok := d.sectionStartIdx[name]
	return ok
}

// Directive returns the effective value of a key within a section. When the
// key appears multiple times the last occurrence wins, matching the
// toolchain's later-overrides-earlier semantics.
func (d *Document) Directive(section, key string) (Directive, bool) {
	start, ok := d.sectionStartIdx[section]
	if !ok {
		return Directive{}, false
	}
	var found Directive
	var have bool
	for _, ln := range d.lines[start+1:] {
		if ln.kind == lineSection {
			break
		}
		if ln.kind == lineDirective && ln.key == key {
			found = Directive{Key: ln.key, Value: ln.value, HasValue: ln.hasValue}
			have = true
		}
	}
	return found, have
}

// AppendSection appends a new section with the given directives at the end
// of the document. It fails if the section already exists.
func (d *Document) AppendSection(section string, directives ...Directive) error {
	if d.HasSection(section) {
		return fmt.Errorf("section [%s] already exists", section)
	}
	if len(d.lines) > 0 && d.lines[len(d.lines)-1].kind != lineBlank {
		d.lines = append(d.lines, line{raw: "", kind: lineBlank})
	}
	d.sectionStartIdx[section] = len(d.lines)
	d.sectionOrder = append(d.sectionOrder, section)
	d.lines = append(d.lines, line{raw: "[" + section + "]", kind: lineSection, section: section})
	for _, dir := range directives {
		d.lines = append(d.lines, directiveLine(dir))
	}
	d.trailingNewline = true
	return nil
}

// AppendDirective appends a directive at the end of an existing section,
// after its last non-blank line.
func (d *Document) AppendDirective(section string, dir Directive) error {
	start, ok := d.sectionStartIdx[section]
	if !ok {
		return fmt.Errorf("section [%s] not found", section)
	}
	end := len(d.lines)
	for i := start + 1; i < len(d.lines); i++ {
		if d.lines[i].kind == lineSection {
			end = i
			break
		}
	}
	// Insert before trailing blank lines of the section.
	insert := end
	for insert > start+1 && d.lines[insert-1].kind == lineBlank {
		insert--
	}
	d.insertAt(insert, directiveLine(dir))
	return nil
}

// SetDirective replaces the last occurrence of key within a section, or
// appends the directive when the key is absent.
func (d *Document) SetDirective(section string, dir Directive) error {
	start, ok := d.sectionStartIdx[section]
	if !ok {
		return fmt.Errorf("section [%s] not found", section)
	}
	last := -1
	for i := start + 1; i < len(d.lines); i++ {
		if d.lines[i].kind == lineSection {
			break
		}
		if d.lines[i].kind == lineDirective && d.lines[i].key == dir.Key {
			last = i
		}
	}
	if last == -1 {
		return d.AppendDirective(section, dir)
	}
	d.lines[last] = directiveLine(dir)
	return nil
}

// UncommentSection activates a commented-out section block: a "#[name]"
// line followed by consecutive "#Key = Value" lines, the way stock
// configurations ship optional repositories. It returns false when no such
// block exists. Only the leading comment markers are removed; indentation
// and spacing inside the lines are preserved.
func (d *Document) UncommentSection(section string) (bool, error) {
	if d.HasSection(section) {
		return false, fmt.Errorf("section [%s] is already active", section)
	}
	header := -1
	for i, ln := range d.lines {
		if ln.kind != lineComment {
			continue
		}
		if uncommented, ok := stripCommentMarker(ln.raw); ok {
			trimmed := strings.TrimSpace(uncommented)
			if trimmed == "["+section+"]" {
				header = i
				break
			}
		}
	}
	if header == -1 {
		return false, nil
	}

	d.replaceWithUncommented(header)
	for i := header + 1; i < len(d.lines); i++ {
		ln := d.lines[i]
		if ln.kind != lineComment {
			break
		}
		uncommented, ok := stripCommentMarker(ln.raw)
		if !ok {
			break
		}
		trimmed := strings.TrimSpace(uncommented)
		// Stop at the next (commented) section header or at prose comments.
		if strings.HasPrefix(trimmed, "[") || !looksLikeDirective(trimmed) {
			break
		}
		d.replaceWithUncommented(i)
	}
	return true, nil
}

// stripCommentMarker removes a single leading '#' from a comment line.
func stripCommentMarker(raw string) (string, bool) {
	trimmed := strings.TrimLeft(raw, " \t")
	if !strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	indent := raw[:len(raw)-len(trimmed)]
	return indent + trimmed[1:], true
}

func looksLikeDirective(trimmed string) bool {
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return false
	}
	key := trimmed
	if k, _, ok := strings.Cut(trimmed, "="); ok {
		key = strings.TrimSpace(k)
	}
	if key == "" || strings.ContainsAny(key, " \t") {
		return false
	}
	return true
}

func (d *Document) replaceWithUncommented(idx int) {
	uncommented, _ := stripCommentMarker(d.lines[idx].raw)
	ln, err := classify(uncommented)
	if err != nil {
		return
	}
	d.lines[idx] = ln
	if ln.kind == lineSection {
		d.sectionStartIdx[ln.section] = idx
		d.sectionOrder = append(d.sectionOrder, ln.section)
	}
}

func (d *Document) insertAt(idx int, ln line) {
	d.lines = append(d.lines, line{})
	copy(d.lines[idx+1:], d.lines[idx:])
	d.lines[idx] = ln
	for name, start := range d.sectionStartIdx {
		if start >= idx {
			d.sectionStartIdx[name] = start + 1
		}
	}
}

func directiveLine(dir Directive) line {
	if dir.HasValue {
		return line{
			raw:      dir.Key + " = " + dir.Value,
			kind:     lineDirective,
			key:      dir.Key,
			value:    dir.Value,
			hasValue: true,
		}
	}
	return line{raw: dir.Key, kind: lineDirective, key: dir.Key}
}

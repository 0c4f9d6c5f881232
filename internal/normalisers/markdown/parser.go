// Package markdown converts Markdown documents into corpus sections.
//
// Every heading starts a section whose text runs to the next heading. The
// document's category comes from YAML front matter:
//
//	---
//	category: rules
//	id_prefix: phb
//	---
//	# Combat
//	## Grappling
//	When you want to grab a creature...
//
// Section IDs join the prefix (the category by default) with the slugged
// heading path, e.g. "phb.combat.grappling".
package markdown

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// frontMatter is the YAML header of a Markdown corpus document.
type frontMatter struct {
	Category domain.Category   `yaml:"category"`
	IDPrefix string            `yaml:"id_prefix"`
	Metadata map[string]string `yaml:"metadata"`
}

var (
	headingLine = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)
	codeBlock   = regexp.MustCompile("(?s)```.*?```")
	inlineCode  = regexp.MustCompile("`([^`]+)`")
	images      = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	bold        = regexp.MustCompile(`(\*\*|__)([^*_]+)(\*\*|__)`)
	italicStar  = regexp.MustCompile(`\*([^*\s][^*]*)\*`)
	italicUnder = regexp.MustCompile(`(^|[^\w])_([^_]+)_([^\w]|$)`)
	blockquote  = regexp.MustCompile(`(?m)^>\s?`)
	rule        = regexp.MustCompile(`(?m)^\s*([-*_])(\s*([-*_])){2,}\s*$`)
	listMarker  = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
	blankLines  = regexp.MustCompile(`\n{3,}`)
	nonSlug     = regexp.MustCompile(`[^a-z0-9]+`)
)

// heading is an open heading on the path to the current line.
type heading struct {
	level int
	title string
	slug  string
}

// Parse splits a Markdown document into sections. name is recorded as the
// source path and names the document in errors.
//
// Headings without body text contribute to the hierarchy of their children
// but produce no section. Text before the first heading becomes a section
// titled after the first H1, or after the file name.
func Parse(data []byte, name string) ([]domain.Section, error) {
	meta, body, err := splitFrontMatter(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: front matter: %v", domain.ErrInvalidInput, name, err)
	}
	meta.Category = domain.Category(strings.ToLower(strings.TrimSpace(string(meta.Category))))
	if meta.Category == "" {
		return nil, fmt.Errorf("%w: %s: front matter needs a category", domain.ErrInvalidInput, name)
	}
	prefix := strings.TrimSpace(meta.IDPrefix)
	if prefix == "" {
		prefix = meta.Category.String()
	}

	p := &parser{
		name:     name,
		category: meta.Category,
		prefix:   prefix,
		metadata: meta.Metadata,
		used:     make(map[string]int),
	}

	inFence := false
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		if !inFence {
			if m := headingLine.FindStringSubmatch(line); m != nil {
				p.flush()
				p.open(len(m[1]), m[2])
				continue
			}
		}
		p.buf.WriteString(line)
		p.buf.WriteByte('\n')
	}
	p.flush()

	if p.sections == nil {
		return []domain.Section{}, nil
	}
	return p.sections, nil
}

type parser struct {
	name     string
	category domain.Category
	prefix   string
	metadata map[string]string

	path     []heading
	buf      strings.Builder
	used     map[string]int
	sections []domain.Section
}

// open pushes a heading, closing any at the same or a deeper level.
func (p *parser) open(level int, title string) {
	for len(p.path) > 0 && p.path[len(p.path)-1].level >= level {
		p.path = p.path[:len(p.path)-1]
	}
	title = Strip(title)
	p.path = append(p.path, heading{level: level, title: title, slug: slug(title)})
}

// flush turns the buffered text into a section under the current path.
func (p *parser) flush() {
	text := Strip(p.buf.String())
	p.buf.Reset()
	if text == "" {
		return
	}

	sec := domain.Section{
		Text:       text,
		Category:   p.category,
		SourcePath: p.name,
		Metadata:   copyMetadata(p.metadata),
	}

	parts := []string{p.prefix}
	if len(p.path) == 0 {
		sec.Title = fileTitle(p.name)
		parts = append(parts, "intro")
	} else {
		sec.Title = p.path[len(p.path)-1].title
		sec.Hierarchy = make([]string, len(p.path))
		for i, h := range p.path {
			sec.Hierarchy[i] = h.title
			parts = append(parts, h.slug)
		}
	}
	sec.ID = p.unique(strings.Join(parts, "."))

	p.sections = append(p.sections, sec)
}

// unique suffixes repeated IDs with -2, -3 and so on.
func (p *parser) unique(id string) string {
	p.used[id]++
	if n := p.used[id]; n > 1 {
		return id + "-" + strconv.Itoa(n)
	}
	return id
}

func splitFrontMatter(data []byte) (frontMatter, string, error) {
	var meta frontMatter
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasPrefix(text, "---\n") {
		return meta, text, nil
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return meta, "", errors.New("unterminated front matter")
	}

	dec := yaml.NewDecoder(bytes.NewReader([]byte(rest[:end])))
	dec.KnownFields(true)
	if err := dec.Decode(&meta); err != nil && !errors.Is(err, io.EOF) {
		return meta, "", err
	}

	body := rest[end+len("\n---"):]
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}
	return meta, body, nil
}

// Strip removes Markdown formatting and keeps the readable text.
func Strip(content string) string {
	content = codeBlock.ReplaceAllStringFunc(content, func(block string) string {
		lines := strings.Split(strings.Trim(block, "`"), "\n")
		if len(lines) > 1 {
			// Drop the info string (language) on the opening fence line.
			lines = lines[1:]
		}
		return strings.Join(lines, "\n")
	})
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = rule.ReplaceAllString(content, "")
	content = blockquote.ReplaceAllString(content, "")
	content = listMarker.ReplaceAllString(content, "")
	content = bold.ReplaceAllString(content, "$2")
	content = italicStar.ReplaceAllString(content, "$1")
	content = italicUnder.ReplaceAllString(content, "$1$2$3")
	content = blankLines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

func slug(title string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if s == "" {
		return "section"
	}
	return s
}

// fileTitle derives a title from a file name: "session_notes-3.md" becomes
// "session notes 3".
func fileTitle(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.NewReplacer("_", " ", "-", " ").Replace(base)
}

func copyMetadata(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

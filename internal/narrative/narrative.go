// Package narrative parses narrative markdown files into the blocks served to the client.
//
// A narrative starts with a YAML front matter block naming at least its title and dataset.
// The body is a sequence of slides, each introduced by a "# [Slide title](dataset URL)" heading.
package narrative

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidPrefix is returned when a narrative request prefix cannot be mapped to a file.
	ErrInvalidPrefix = errors.New("invalid narrative prefix")

	// ErrUnsupported is returned for a narrative type that cannot be served.
	ErrUnsupported = errors.New("unsupported type")
)

// Format is the representation a narrative is served in.
type Format int

const (
	// FormatBlocks is the parsed blocks, as JSON.
	FormatBlocks Format = iota
	// FormatMarkdown is the file itself.
	FormatMarkdown
)

// ParseFormat returns the format asked for by the type of a getNarrative request.
func ParseFormat(typ string) (Format, error) {
	switch typ {
	case "", "json":
		return FormatBlocks, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnsupported, typ)
}

// Block is one slide of a narrative.
type Block struct {
	HTML                string `json:"__html"`
	Dataset             string `json:"dataset"`
	Query               string `json:"query"`
	MainDisplayMarkdown string `json:"mainDisplayMarkdown,omitempty"`

	// Markdown is the source the HTML was rendered from.
	Markdown string `json:"-"`
}

var (
	titleSplit = regexp.MustCompile(`\n*[#\s]+(\[.+?\]\(.+?\))\n+`)
	isTitle    = regexp.MustCompile(`^\[.+?\]\(.+?\)$`)
	titleParts = regexp.MustCompile(`\[(.+?)\]\((\S+)\)`)
	slideURL   = regexp.MustCompile(`.*(nextstrain.org|localhost).*?/+([^?\s]+)\??(\S*)`)
	mainDisp   = regexp.MustCompile("(?s)^(.*)```auspiceMainDisplayMarkdown\n(.+)\n```(.*)$")
	frontDelim = regexp.MustCompile(`^---[ \t]*\n`)
	markdown   = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
)

// FilenameFromPrefix maps a getNarrative prefix to the markdown file name in the narratives directory.
//
// Anything up to and including the last "narratives/" is dropped, so "/narratives/ncov/sit-rep/"
// maps to "ncov_sit-rep.md".
func FilenameFromPrefix(prefix string) (string, error) {
	name := prefix
	if i := strings.LastIndex(name, "narratives/"); i >= 0 {
		name = name[i+len("narratives/"):]
	}
	name = strings.TrimSuffix(name, "/")
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `\`+"\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	return strings.ReplaceAll(name, "/", "_") + ".md", nil
}

// Parse parses the contents of a narrative file into blocks. The first block is the title slide.
func Parse(contents []byte) ([]Block, error) {
	text := strings.ReplaceAll(string(contents), "\r\n", "\n")

	front, body, err := splitFrontMatter(text)
	if err != nil {
		return nil, err
	}

	title, err := titleBlock(front)
	if err != nil {
		return nil, err
	}
	blocks := []Block{title}

	parts := splitTitles(body)
	for i := 0; i < len(parts); {
		if !isTitle.MatchString(parts[i]) {
			i++
			continue
		}

		m := titleParts.FindStringSubmatch(parts[i])
		if m == nil {
			return nil, fmt.Errorf("malformed slide heading %q", strings.TrimSpace(parts[i]))
		}
		slide := fmt.Sprintf("# %s\n", m[1])
		i++
		if i < len(parts) && !isTitle.MatchString(parts[i]) {
			slide += parts[i]
			i++
		}

		b, err := newBlock(m[2], slide)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}

	return blocks, nil
}

// splitTitles splits body around the slide headings, keeping the headings as their own elements.
// Whitespace only elements are dropped.
func splitTitles(body string) []string {
	var parts []string
	add := func(s string) {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}

	last := 0
	for _, m := range titleSplit.FindAllStringSubmatchIndex(body, -1) {
		add(body[last:m[0]])
		add(body[m[2]:m[3]])
		last = m[1]
	}
	add(body[last:])
	return parts
}

func splitFrontMatter(text string) (map[string]any, string, error) {
	loc := frontDelim.FindStringIndex(text)
	if loc == nil {
		return nil, text, nil
	}
	rest := text[loc[1]:]

	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, text, nil
	}
	raw := rest[:end]
	body := strings.TrimPrefix(rest[end+len("\n---"):], "\n")

	front := make(map[string]any)
	if err := yaml.Unmarshal([]byte(raw), &front); err != nil {
		return nil, "", fmt.Errorf("invalid front matter in narrative file: %v", err)
	}
	return front, body, nil
}

func titleBlock(front map[string]any) (Block, error) {
	title, dataset := front["title"], front["dataset"]
	if isEmpty(title) || isEmpty(dataset) {
		return Block{}, errors.New("incorrectly formatted front matter in narrative file")
	}

	md := []string{fmt.Sprintf("# %v", title)}
	if authors := contributors(front, "authors", "authorLinks"); authors != "" {
		line := "### Author: " + authors
		if aff, ok := front["affiliations"].(string); ok && aff != "" {
			md = append(md, line+" <sup> 1 </sup>", "<sup> 1 </sup> "+aff)
		} else {
			md = append(md, line)
		}
	}
	if translators := contributors(front, "translators", "translatorLinks"); translators != "" {
		md = append(md, "### Translators: "+translators)
	}
	if date, ok := front["date"].(string); ok && date != "" {
		md = append(md, "### Created: "+date)
	}
	if updated, ok := front["updated"].(string); ok && updated != "" {
		md = append(md, "### Updated: "+updated)
	}
	if abstract, ok := front["abstract"].(string); ok && abstract != "" {
		md = append(md, "#### "+abstract)
	}

	return newBlock(fmt.Sprint(dataset), strings.Join(md, "\n"))
}

// contributors formats the contributor list under key, linking names with the list under linksKey.
// Inconsistent link lists are ignored with a warning.
func contributors(front map[string]any, key, linksKey string) string {
	links, hasLinks := front[linksKey]

	switch c := front[key].(type) {
	case []any:
		names := make([]string, 0, len(c))
		for _, n := range c {
			names = append(names, fmt.Sprint(n))
		}

		var urls []any
		if hasLinks {
			l, ok := links.([]any)
			switch {
			case !ok:
				slog.Warn(fmt.Sprintf("Narrative parsing: if %s is a list, %s must also be a list. Skipping links.", key, linksKey))
			case len(l) != len(names):
				slog.Warn(fmt.Sprintf("Narrative parsing: %s and %s have different lengths. Skipping links.", key, linksKey))
			default:
				urls = l
			}
		}
		for i := range names {
			if urls != nil {
				names[i] = link(names[i], urls[i])
			}
		}
		return strings.Join(names, ", ")

	case string:
		if !hasLinks {
			return c
		}
		l, ok := links.(string)
		if !ok {
			slog.Warn(fmt.Sprintf("Narrative parsing: if %s is a string, %s must also be a string. Skipping links.", key, linksKey))
			return c
		}
		return link(c, l)
	}
	return ""
}

func link(name string, url any) string {
	u, ok := url.(string)
	if !ok || u == "" {
		return name
	}
	return fmt.Sprintf("[%s](%s)", name, u)
}

func newBlock(url, contents string) (Block, error) {
	m := slideURL.FindStringSubmatch(url)
	if m == nil {
		return Block{}, fmt.Errorf("slide URL %q does not point to a nextstrain.org or localhost dataset", url)
	}
	b := Block{Dataset: m[2], Query: m[3]}

	if g := mainDisp.FindStringSubmatch(contents); g != nil {
		contents = g[1] + g[3]
		b.MainDisplayMarkdown = g[2]
	}
	b.Markdown = contents

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(contents), &buf); err != nil {
		return Block{}, fmt.Errorf("could not render slide markdown: %v", err)
	}
	b.HTML = buf.String()
	return b, nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

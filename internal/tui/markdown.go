package tui

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	h1Regex      = regexp.MustCompile(`<h1 id="[^"]*">(.*?)</h1>`)
	h2Regex      = regexp.MustCompile(`<h2 id="[^"]*">(.*?)</h2>`)
	h3Regex      = regexp.MustCompile(`<h3 id="[^"]*">(.*?)</h3>`)
	strongRegex  = regexp.MustCompile(`<strong>(.*?)</strong>`)
	emRegex      = regexp.MustCompile(`<em>(.*?)</em>`)
	ulRegex      = regexp.MustCompile(`(?s)<ul>(.*?)</ul>`)
	olRegex      = regexp.MustCompile(`(?s)<ol>(.*?)</ol>`)
	liRegex      = regexp.MustCompile(`<li>(.*?)</li>`)
	inlineCodeRe = regexp.MustCompile(`<code>([^<]+)</code>`)
	htmlTagRegex = regexp.MustCompile(`<[^>]+>`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

// MarkdownRenderer renders prose segments for the terminal. Code segments
// are rendered separately via RenderCodeBlock so the panel can attach
// copy/apply hints per block.
type MarkdownRenderer struct {
	goldmark.Markdown
	formatter chroma.Formatter
	style     *chroma.Style
	theme     Theme
}

func NewMarkdownRenderer(theme Theme) *MarkdownRenderer {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
		goldmark.WithExtensions(
			extension.GFM,
		),
	)

	return &MarkdownRenderer{
		Markdown:  md,
		formatter: formatters.Get("terminal256"),
		style:     styles.Get("friendly"),
		theme:     theme,
	}
}

// RenderProse renders one prose segment to terminal text.
func (r *MarkdownRenderer) RenderProse(content string, width int) string {
	var buf bytes.Buffer
	if err := r.Convert([]byte(content), &buf); err != nil {
		return content
	}
	return r.formatForTerminal(buf.String(), width)
}

func (r *MarkdownRenderer) formatForTerminal(htmlContent string, width int) string {
	result := htmlContent

	result = inlineCodeRe.ReplaceAllStringFunc(result, func(m string) string {
		matches := inlineCodeRe.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		return lipgloss.NewStyle().
			Foreground(r.theme.Accent).
			Render(decodeHTMLEntities(matches[1]))
	})

	for _, h := range []*regexp.Regexp{h1Regex, h2Regex, h3Regex} {
		result = h.ReplaceAllStringFunc(result, func(m string) string {
			matches := h.FindStringSubmatch(m)
			if len(matches) < 2 {
				return m
			}
			return lipgloss.NewStyle().
				Bold(true).
				Foreground(r.theme.Accent).
				Render(matches[1]) + "\n"
		})
	}

	result = strongRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := strongRegex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		return lipgloss.NewStyle().Bold(true).Render(matches[1])
	})

	result = emRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := emRegex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		return lipgloss.NewStyle().Italic(true).Render(matches[1])
	})

	result = ulRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := ulRegex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		items := liRegex.FindAllStringSubmatch(matches[1], -1)
		var list strings.Builder
		for _, item := range items {
			if len(item) >= 2 {
				list.WriteString("  • ")
				list.WriteString(htmlTagRegex.ReplaceAllString(item[1], ""))
				list.WriteString("\n")
			}
		}
		return list.String()
	})

	result = olRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := olRegex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		items := liRegex.FindAllStringSubmatch(matches[1], -1)
		var list strings.Builder
		for i, item := range items {
			if len(item) >= 2 {
				list.WriteString(fmt.Sprintf("  %d. ", i+1))
				list.WriteString(htmlTagRegex.ReplaceAllString(item[1], ""))
				list.WriteString("\n")
			}
		}
		return list.String()
	})

	result = strings.ReplaceAll(result, "<p>", "")
	result = strings.ReplaceAll(result, "</p>", "\n")
	result = strings.ReplaceAll(result, "<br>", "\n")
	result = strings.ReplaceAll(result, "<br/>", "\n")
	result = strings.ReplaceAll(result, "<br />", "\n")

	result = htmlTagRegex.ReplaceAllString(result, "")
	result = decodeHTMLEntities(result)
	result = multiNewline.ReplaceAllString(result, "\n\n")

	return strings.TrimRight(result, "\n")
}

// RenderCodeBlock highlights one code segment and frames it with a border
// carrying the language tag.
func (r *MarkdownRenderer) RenderCodeBlock(code, lang string, width int) string {
	highlighted := r.highlight(code, lang)

	codeWidth := width - 6
	if codeWidth < 20 {
		codeWidth = 20
	}
	return lipgloss.NewStyle().
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(r.theme.Border).
		Width(codeWidth).
		Render(highlighted)
}

func (r *MarkdownRenderer) highlight(code, lang string) string {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := r.formatter.Format(&buf, r.style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}

func decodeHTMLEntities(s string) string {
	replacements := []struct {
		old string
		new string
	}{
		{"&amp;", "&"},
		{"&lt;", "<"},
		{"&gt;", ">"},
		{"&quot;", "\""},
		{"&#39;", "'"},
		{"&nbsp;", " "},
		{"&#x27;", "'"},
		{"&#x60;", "`"},
	}
	for _, r := range replacements {
		s = strings.ReplaceAll(s, r.old, r.new)
	}
	return s
}

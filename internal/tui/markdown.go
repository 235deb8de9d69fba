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
	"github.com/yuin/goldmark/renderer/html"
)

var (
	codeBlockRegex = regexp.MustCompile(`(?s)<pre><code(?: class="language-([a-zA-Z0-9]+)")?>(.*?)</code></pre>`)
	inlineCodeRe   = regexp.MustCompile(`<code>([^<]+)</code>`)
	headingRegex   = regexp.MustCompile(`<h[1-6][^>]*>(.*?)</h[1-6]>`)
	strongRegex    = regexp.MustCompile(`<strong>(.*?)</strong>`)
	emRegex        = regexp.MustCompile(`<em>(.*?)</em>`)
	liRegex        = regexp.MustCompile(`<li>(.*?)</li>`)
	htmlTagRegex   = regexp.MustCompile(`<[^>]+>`)
	multiNewline   = regexp.MustCompile(`\n{3,}`)
)

// MarkdownRenderer renders assistant replies for the terminal: goldmark for
// the markdown pass, chroma for fenced code blocks.
type MarkdownRenderer struct {
	goldmark.Markdown
	formatter chroma.Formatter
	style     *chroma.Style
	theme     Theme
}

func NewMarkdownRenderer(theme Theme) *MarkdownRenderer {
	md := goldmark.New(
		goldmark.WithRendererOptions(html.WithXHTML()),
		goldmark.WithExtensions(extension.GFM),
	)
	return &MarkdownRenderer{
		Markdown:  md,
		formatter: formatters.Get("terminal256"),
		style:     styles.Get("monokai"),
		theme:     theme,
	}
}

// Render converts markdown to styled terminal text. On any conversion
// failure the raw content comes back unchanged.
func (r *MarkdownRenderer) Render(content string, width int) string {
	var buf bytes.Buffer
	if err := r.Convert([]byte(content), &buf); err != nil {
		return content
	}
	return r.formatForTerminal(buf.String(), width)
}

func (r *MarkdownRenderer) formatForTerminal(htmlContent string, width int) string {
	result := htmlContent

	// Code blocks first, parked behind placeholders so later passes do not
	// mangle the highlighted output.
	var codeBlocks []string
	result = codeBlockRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := codeBlockRegex.FindStringSubmatch(m)
		if len(matches) < 3 {
			return m
		}
		highlighted := r.highlight(decodeHTMLEntities(matches[2]), matches[1])
		blockWidth := width - 4
		if blockWidth < 20 {
			blockWidth = 20
		}
		styled := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(r.theme.Border).
			Padding(0, 1).
			Width(blockWidth).
			Render(highlighted)
		index := len(codeBlocks)
		codeBlocks = append(codeBlocks, styled)
		return fmt.Sprintf("\n{{CODE_BLOCK_%d}}\n", index)
	})

	result = inlineCodeRe.ReplaceAllStringFunc(result, func(m string) string {
		matches := inlineCodeRe.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		return lipgloss.NewStyle().Foreground(r.theme.Warn).Render(decodeHTMLEntities(matches[1]))
	})

	result = headingRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := headingRegex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		return "\n" + lipgloss.NewStyle().Bold(true).Foreground(r.theme.Accent).Render(matches[1]) + "\n"
	})

	result = strongRegex.ReplaceAllString(result, "\x1b[1m$1\x1b[22m")
	result = emRegex.ReplaceAllString(result, "\x1b[3m$1\x1b[23m")
	result = liRegex.ReplaceAllString(result, "  • $1\n")
	result = strings.ReplaceAll(result, "<br />", "\n")
	result = strings.ReplaceAll(result, "</p>", "\n")
	result = htmlTagRegex.ReplaceAllString(result, "")
	result = decodeHTMLEntities(result)
	result = multiNewline.ReplaceAllString(result, "\n\n")

	for i, block := range codeBlocks {
		result = strings.Replace(result, fmt.Sprintf("{{CODE_BLOCK_%d}}", i), block, 1)
	}
	return strings.TrimSpace(result)
}

func (r *MarkdownRenderer) highlight(code, lang string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
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
	replacer := strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", `"`,
		"&#39;", "'",
		"&#34;", `"`,
	)
	return replacer.Replace(s)
}

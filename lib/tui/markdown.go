// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const wrapBreakpoints = " ,.;-+|"

var (
	markdownOnce   sync.Once
	markdownParser goldmark.Markdown
)

// Tables are not enabled: post bodies are short prose and table rows
// read fine as plain paragraphs.
func parser() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownParser = goldmark.New(goldmark.WithExtensions(
			extension.Strikethrough,
			extension.Linkify,
			extension.TaskList,
		))
	})
	return markdownParser
}

// RenderMarkdown renders post or comment text as styled terminal
// output wrapped to width. Soft line breaks become spaces so text
// reflows at any width.
func RenderMarkdown(input string, theme Theme, width int) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	source := []byte(input)
	document := parser().Parser().Parse(text.NewReader(source))

	// The output always goes to the alternate screen, so color
	// detection is bypassed. Without SetColorProfile lipgloss re-detects
	// and emits plain text when there is no TTY.
	lipRenderer := lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256))
	lipRenderer.SetColorProfile(termenv.ANSI256)

	renderer := &markdownRenderer{source: source, theme: theme, width: width, lip: lipRenderer}
	_ = ast.Walk(document, renderer.walk)
	return strings.TrimRight(renderer.output.String(), "\n")
}

type listLevel struct {
	ordered bool
	counter int
	tight   bool
}

// markdownRenderer collects inline content per block and wraps it as a
// unit when the block closes.
type markdownRenderer struct {
	source []byte
	theme  Theme
	width  int
	lip    *lipgloss.Renderer

	output   strings.Builder
	inline   strings.Builder
	trailing int // newlines at the end of output

	prefixes      []string
	prefix        string
	pendingBullet string

	bold, italic, strike int
	lists                []listLevel
}

func (r *markdownRenderer) style() lipgloss.Style { return r.lip.NewStyle() }

func (r *markdownRenderer) contentWidth() int {
	return max(r.width-ansi.StringWidth(r.prefix), 10)
}

func (r *markdownRenderer) pushPrefix(prefix string) {
	r.prefixes = append(r.prefixes, prefix)
	r.prefix += prefix
}

func (r *markdownRenderer) popPrefix() {
	if len(r.prefixes) == 0 {
		return
	}
	top := r.prefixes[len(r.prefixes)-1]
	r.prefixes = r.prefixes[:len(r.prefixes)-1]
	r.prefix = r.prefix[:len(r.prefix)-len(top)]
}

func (r *markdownRenderer) write(s string) {
	if s == "" {
		return
	}
	r.output.WriteString(s)
	trimmed := strings.TrimRight(s, "\n")
	newlines := len(s) - len(trimmed)
	if trimmed == "" {
		r.trailing += newlines
	} else {
		r.trailing = newlines
	}
}

func (r *markdownRenderer) newline() {
	if r.trailing < 1 {
		r.write("\n")
	}
}

func (r *markdownRenderer) blankLine() {
	if r.output.Len() == 0 {
		return
	}
	for r.trailing < 2 {
		r.write("\n")
	}
}

func (r *markdownRenderer) tight() bool {
	return len(r.lists) > 0 && r.lists[len(r.lists)-1].tight
}

// prefixed applies the line prefix to every line, using a pending list
// bullet for the first one.
func (r *markdownRenderer) prefixed(content string) string {
	var out strings.Builder
	for index, line := range strings.Split(content, "\n") {
		if index > 0 {
			out.WriteString("\n")
		}
		if index == 0 && r.pendingBullet != "" {
			out.WriteString(r.pendingBullet)
			r.pendingBullet = ""
		} else {
			out.WriteString(r.prefix)
		}
		out.WriteString(line)
	}
	return out.String()
}

func (r *markdownRenderer) flushBlock() {
	content := r.inline.String()
	r.inline.Reset()
	if content == "" {
		return
	}
	r.write(r.prefixed(ansi.Wrap(content, r.contentWidth(), wrapBreakpoints)))
	r.newline()
	if !r.tight() {
		r.blankLine()
	}
}

func (r *markdownRenderer) styled(content string) string {
	style := r.style().Foreground(r.theme.NormalText)
	if r.bold > 0 {
		style = style.Bold(true)
	}
	if r.italic > 0 {
		style = style.Italic(true)
	}
	if r.strike > 0 {
		style = style.Strikethrough(true)
	}
	return style.Render(content)
}

func (r *markdownRenderer) faint(content string) string {
	return r.style().Foreground(r.theme.FaintText).Render(content)
}

func (r *markdownRenderer) lines(node ast.Node) string {
	var code strings.Builder
	lines := node.Lines()
	for index := range lines.Len() {
		segment := lines.At(index)
		code.Write(segment.Value(r.source))
	}
	return code.String()
}

func (r *markdownRenderer) codeBlock(code, language string) {
	highlighted := r.faint(code)
	if language != "" {
		var buffer strings.Builder
		if err := quick.Highlight(&buffer, code, language, "terminal256", "monokai"); err == nil {
			highlighted = buffer.String()
		}
	}
	r.blankLine()
	for _, line := range strings.Split(strings.TrimRight(highlighted, "\n"), "\n") {
		r.write(r.prefixed(line))
		r.newline()
	}
	r.blankLine()
}

// inlineText renders a node's children into a string without
// disturbing the block being collected.
func (r *markdownRenderer) inlineText(node ast.Node) string {
	saved := r.inline.String()
	r.inline.Reset()
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		_ = ast.Walk(child, r.walk)
	}
	result := r.inline.String()
	r.inline.Reset()
	r.inline.WriteString(saved)
	return result
}

func (r *markdownRenderer) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			r.inline.Reset()
		} else {
			r.flushBlock()
		}

	case ast.KindHeading:
		if entering {
			r.inline.Reset()
			break
		}
		content := ansi.Strip(r.inline.String())
		r.inline.Reset()
		if content == "" {
			break
		}
		style := r.style().Bold(true).Foreground(r.theme.NormalText)
		if node.(*ast.Heading).Level <= 2 {
			style = style.Foreground(r.theme.HeaderForeground).Underline(true)
		}
		r.blankLine()
		r.write(r.prefixed(ansi.Wrap(style.Render(content), r.contentWidth(), wrapBreakpoints)))
		r.newline()
		r.blankLine()

	case ast.KindFencedCodeBlock:
		if entering {
			block := node.(*ast.FencedCodeBlock)
			r.codeBlock(r.lines(block), string(block.Language(r.source)))
		}
		return ast.WalkSkipChildren, nil

	case ast.KindCodeBlock:
		if entering {
			r.codeBlock(r.lines(node), "")
		}
		return ast.WalkSkipChildren, nil

	case ast.KindHTMLBlock:
		if entering {
			if stripped := strings.TrimSpace(stripTags(r.lines(node))); stripped != "" {
				r.write(r.prefixed(r.faint(stripped)))
				r.newline()
				r.blankLine()
			}
		}
		return ast.WalkSkipChildren, nil

	case ast.KindBlockquote:
		if entering {
			r.pushPrefix(r.style().Foreground(r.theme.BorderColor).Render("│") + " ")
		} else {
			r.popPrefix()
			r.blankLine()
		}

	case ast.KindList:
		if entering {
			list := node.(*ast.List)
			r.lists = append(r.lists, listLevel{ordered: list.IsOrdered(), counter: list.Start, tight: list.IsTight})
		} else {
			r.lists = r.lists[:len(r.lists)-1]
			if !r.tight() {
				r.blankLine()
			}
		}

	case ast.KindListItem:
		if len(r.lists) == 0 {
			break
		}
		if !entering {
			r.popPrefix()
			r.newline()
			break
		}
		level := &r.lists[len(r.lists)-1]
		bullet := "• "
		if level.ordered {
			bullet = fmt.Sprintf("%d. ", level.counter)
			level.counter++
		}
		r.pendingBullet = r.prefix + bullet
		r.pushPrefix(strings.Repeat(" ", len([]rune(bullet))))

	case ast.KindThematicBreak:
		if entering {
			r.blankLine()
			rule := r.style().Foreground(r.theme.BorderColor).Render(strings.Repeat("─", r.contentWidth()))
			r.write(r.prefixed(rule))
			r.newline()
			r.blankLine()
		}

	case ast.KindText:
		if entering {
			textNode := node.(*ast.Text)
			r.inline.WriteString(r.styled(string(textNode.Segment.Value(r.source))))
			switch {
			case textNode.HardLineBreak():
				r.inline.WriteString("\n")
			case textNode.SoftLineBreak():
				r.inline.WriteString(" ")
			}
		}

	case ast.KindString:
		if entering {
			r.inline.WriteString(r.styled(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		counter := &r.italic
		if node.(*ast.Emphasis).Level >= 2 {
			counter = &r.bold
		}
		if entering {
			*counter++
		} else {
			*counter--
		}

	case extast.KindStrikethrough:
		if entering {
			r.strike++
		} else {
			r.strike--
		}

	case ast.KindCodeSpan:
		if entering {
			code := ansi.Strip(r.inlineText(node))
			r.inline.WriteString(r.style().Foreground(r.theme.MatchForeground).Render(code))
		}
		return ast.WalkSkipChildren, nil

	case ast.KindLink:
		if entering {
			link := node.(*ast.Link)
			label := r.inlineText(node)
			r.inline.WriteString(r.style().Foreground(r.theme.LinkForeground).Underline(true).Render(ansi.Strip(label)))
			if destination := string(link.Destination); destination != "" && destination != ansi.Strip(label) {
				r.inline.WriteString(" " + r.faint("("+destination+")"))
			}
		}
		return ast.WalkSkipChildren, nil

	case ast.KindAutoLink:
		if entering {
			url := string(node.(*ast.AutoLink).URL(r.source))
			r.inline.WriteString(r.style().Foreground(r.theme.LinkForeground).Underline(true).Render(url))
		}
		return ast.WalkSkipChildren, nil

	case ast.KindImage:
		if entering {
			image := node.(*ast.Image)
			alt := ansi.Strip(r.inlineText(node))
			r.inline.WriteString(r.faint("[image: " + alt + "] (" + string(image.Destination) + ")"))
		}
		return ast.WalkSkipChildren, nil

	case ast.KindRawHTML:
		if entering {
			raw := node.(*ast.RawHTML)
			var html strings.Builder
			for index := range raw.Segments.Len() {
				segment := raw.Segments.At(index)
				html.Write(segment.Value(r.source))
			}
			if stripped := stripTags(html.String()); stripped != "" {
				r.inline.WriteString(r.faint(stripped))
			}
		}

	case extast.KindTaskCheckBox:
		if entering {
			if node.(*extast.TaskCheckBox).IsChecked {
				r.inline.WriteString(r.style().Foreground(r.theme.SuccessText).Render("[x]") + " ")
			} else {
				r.inline.WriteString(r.styled("[ ] "))
			}
		}
	}
	return ast.WalkContinue, nil
}

func stripTags(html string) string {
	var out strings.Builder
	inTag := false
	for _, character := range html {
		switch {
		case character == '<':
			inTag = true
		case character == '>':
			inTag = false
		case !inTag:
			out.WriteRune(character)
		}
	}
	return out.String()
}

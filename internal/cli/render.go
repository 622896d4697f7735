// ABOUTME: Terminal output for transcripts, streamed replies and status lines
// ABOUTME: Renders assistant markdown with glamour on a TTY and as plain text otherwise

package cli

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/2389/irma/internal/client"
)

// Renderer writes command output.
type Renderer struct {
	out      io.Writer
	errOut   io.Writer
	markdown *glamour.TermRenderer // nil when output is not a terminal

	user      *color.Color
	assistant *color.Color
	info      *color.Color
	failure   *color.Color
}

// NewRenderer creates a renderer. With tty set, assistant text is rendered as
// styled markdown wrapped at width columns.
func NewRenderer(out, errOut io.Writer, tty bool, width int) *Renderer {
	r := &Renderer{
		out:       out,
		errOut:    errOut,
		user:      color.New(color.FgGreen, color.Bold),
		assistant: color.New(color.FgCyan, color.Bold),
		info:      color.New(color.Faint),
		failure:   color.New(color.FgRed),
	}
	if !tty {
		for _, c := range []*color.Color{r.user, r.assistant, r.info, r.failure} {
			c.DisableColor()
		}
		return r
	}

	if width <= 20 {
		width = 80
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err == nil {
		r.markdown = md
	}
	return r
}

// Printf writes a plain line to stdout.
func (r *Renderer) Printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// Infof writes a de-emphasised line to stdout.
func (r *Renderer) Infof(format string, args ...any) {
	r.info.Fprintf(r.out, format, args...)
}

// Errorf writes a line to stderr.
func (r *Renderer) Errorf(format string, args ...any) {
	r.failure.Fprintf(r.errOut, format, args...)
}

// Prompt writes the interactive input prompt.
func (r *Renderer) Prompt() {
	r.user.Fprint(r.out, "> ")
}

// Transcript prints messages with You:/Irma: prefixes.
func (r *Renderer) Transcript(messages []client.Message) {
	for _, m := range messages {
		if strings.EqualFold(m.Role, "assistant") {
			r.assistant.Fprint(r.out, "Irma: ")
			fmt.Fprintln(r.out, r.formatAssistant(m.Text))
			continue
		}
		r.user.Fprint(r.out, "You: ")
		fmt.Fprintln(r.out, m.Text)
	}
}

// Reply prints one streamed assistant message.
func (r *Renderer) Reply(text string) {
	fmt.Fprint(r.out, r.formatAssistant(text))
}

// EndOfReply terminates a streamed reply.
func (r *Renderer) EndOfReply() {
	fmt.Fprintln(r.out)
}

func (r *Renderer) formatAssistant(md string) string {
	if r.markdown != nil {
		if rendered, err := r.markdown.Render(md); err == nil {
			return strings.Trim(rendered, "\n")
		}
	}
	return PlainText(md)
}

// PlainText strips markdown syntax from md, keeping its readable text.
func PlainText(md string) string {
	src := []byte(md)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			switch node := n.(type) {
			case *ast.Text:
				buf.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			case *ast.String:
				buf.Write(node.Value)
			case *ast.CodeBlock, *ast.FencedCodeBlock:
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(src))
				}
				return ast.WalkSkipChildren, nil
			case *ast.ListItem:
				buf.WriteString("- ")
			}
			return ast.WalkContinue, nil
		}

		if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
			if buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
				buf.WriteByte('\n')
			}
			switch n.Kind() {
			case ast.KindParagraph, ast.KindHeading, ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindList:
				if n.NextSibling() != nil && n.Parent().Kind() == ast.KindDocument {
					buf.WriteByte('\n')
				}
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimRight(buf.String(), "\n")
}

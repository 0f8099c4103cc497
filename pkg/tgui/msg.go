package tgui

import (
	"context"
	"strings"
	"unicode/utf8"

	kit "notifsnd/internal/transport"
)

// Message is rendered text plus the send options that go with it.
type Message struct {
	Text string
	Opt  *kit.SendOptions
}

func (m Message) Send(ctx context.Context, ad kit.Adapter, to kit.ChatTarget) (kit.MessageRef, error) {
	return ad.SendText(ctx, to, m.Text, m.Opt)
}

func (m Message) Edit(ctx context.Context, ad kit.Adapter, ref kit.MessageRef) error {
	return ad.EditText(ctx, ref, m.Text, m.Opt)
}

// Builder assembles an HTML message line by line. Previews are disabled.
type Builder struct {
	kb    *Inline
	lines []string
}

func New() *Builder { return &Builder{} }

func (b *Builder) Inline(kb *Inline) *Builder {
	b.kb = kb
	return b
}

// Title adds a bold heading with an optional emoji in front.
func (b *Builder) Title(emoji, title string) *Builder {
	h := B(strings.TrimSpace(title))
	if e := strings.TrimSpace(emoji); e != "" {
		h = Esc(e) + " " + h
	}
	b.lines = append(b.lines, h.String())
	return b
}

// Line adds an escaped line; blank input adds an empty line.
func (b *Builder) Line(s string) *Builder {
	b.lines = append(b.lines, Esc(s).String())
	return b
}

// HTML adds a line that is already safe HTML.
func (b *Builder) HTML(h H) *Builder {
	b.lines = append(b.lines, h.String())
	return b
}

func (b *Builder) Blank() *Builder { return b.Line("") }

// KV adds a "• key: value" row.
func (b *Builder) KV(key, value string) *Builder {
	b.lines = append(b.lines, "• "+B(key).String()+": "+Esc(value).String())
	return b
}

func (b *Builder) Build() Message {
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if b.kb != nil && b.kb.Len() > 0 {
		opt.ReplyMarkupAdapter = b.kb.Markup()
	}
	return Message{Text: strings.Trim(strings.Join(b.lines, "\n"), "\n"), Opt: opt}
}

// TruncRunes cuts s to at most n runes, appending "…" when it had to cut.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + "…"
		}
		i++
	}
	return s
}

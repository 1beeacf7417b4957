// Package format turns raw container output into chat messages: it splits
// the output into chunks that fit the transport's message size limit and
// wraps each chunk in an ANSI code block with keyword highlighting.
package format

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"

	"github.com/auto-dns/docker-discord-relay/internal/config"
)

const (
	fenceOpen  = "```ansi\n"
	fenceClose = "\n```"
	resetSeq   = "\u001b[0;0m"
)

var envelopeLen = utf8.RuneCountInString(fenceOpen) + utf8.RuneCountInString(fenceClose)

type rule struct {
	token  string
	styled string
}

type Formatter struct {
	chunkLimit   int
	messageLimit int
	stripANSI    bool
	rules        []rule
}

// New builds a Formatter. Severity rules are applied before service rules,
// each in configuration order. Rules with an unknown color are skipped;
// config validation rejects them before they get here.
func New(cfg config.FormatConfig) *Formatter {
	f := &Formatter{
		chunkLimit:   cfg.ChunkLimit,
		messageLimit: cfg.MessageLimit,
		stripANSI:    cfg.StripANSI,
	}
	for _, rules := range [][]config.HighlightRule{cfg.SeverityColors, cfg.ServiceColors} {
		for _, r := range rules {
			code, ok := config.Colors[strings.ToLower(r.Color)]
			if !ok || r.Token == "" || strings.Contains(r.Token, "\n") {
				continue
			}
			f.rules = append(f.rules, rule{
				token:  r.Token,
				styled: fmt.Sprintf("\u001b[1;%dm%s%s", code, r.Token, resetSeq),
			})
		}
	}
	return f
}

// Format splits raw into rendered chunks, in original line order. Every
// chunk carries at most ChunkLimit runes of log text and renders to at most
// MessageLimit runes. A line too long for either limit on its own is split
// mid-line across consecutive chunks.
func (f *Formatter) Format(raw string) []string {
	lines := f.lines(raw)
	if len(lines) == 0 {
		return nil
	}

	var (
		chunks   []string
		body     []string
		payload  int
		rendered int
	)
	flush := func() {
		if len(body) == 0 {
			return
		}
		chunks = append(chunks, f.wrap(strings.Join(body, "\n")))
		body = body[:0]
		payload, rendered = 0, 0
	}

	for _, line := range lines {
		for _, piece := range f.fit(line) {
			pLen := utf8.RuneCountInString(piece)
			rLen := utf8.RuneCountInString(f.highlight(piece))
			sep := 0
			if len(body) > 0 {
				sep = 1
			}
			if len(body) > 0 &&
				(payload+sep+pLen > f.chunkLimit || envelopeLen+rendered+sep+rLen > f.messageLimit) {
				flush()
				sep = 0
			}
			body = append(body, piece)
			payload += sep + pLen
			rendered += sep + rLen
		}
	}
	flush()
	return chunks
}

// lines normalizes raw output into trimmed lines, dropping trailing blank
// lines. Blank lines between content are kept.
func (f *Formatter) lines(raw string) []string {
	if f.stripANSI {
		raw = ansi.Strip(raw)
	}
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	parts := strings.Split(raw, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimRightFunc(p, unicode.IsSpace))
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func (f *Formatter) fits(s string) bool {
	return utf8.RuneCountInString(s) <= f.chunkLimit &&
		envelopeLen+utf8.RuneCountInString(f.highlight(s)) <= f.messageLimit
}

// fit splits a single line into pieces that each fit a chunk on their own.
// Pieces are cut on rune boundaries; a single rune is never split further.
func (f *Formatter) fit(line string) []string {
	if f.fits(line) {
		return []string{line}
	}
	runes := []rune(line)
	if len(runes) <= 1 {
		return []string{line}
	}
	if len(runes) > f.chunkLimit {
		var out []string
		for len(runes) > 0 {
			n := min(f.chunkLimit, len(runes))
			out = append(out, f.fit(string(runes[:n]))...)
			runes = runes[n:]
		}
		return out
	}
	// Fits the payload limit but highlighting pushes it over the message limit.
	mid := len(runes) / 2
	return append(f.fit(string(runes[:mid])), f.fit(string(runes[mid:]))...)
}

// highlight applies literal substitution of every rule. Matching is plain
// substring replacement, so a token inside a longer word is colored too.
func (f *Formatter) highlight(s string) string {
	for _, r := range f.rules {
		s = strings.ReplaceAll(s, r.token, r.styled)
	}
	return s
}

func (f *Formatter) wrap(body string) string {
	return fenceOpen + f.highlight(body) + fenceClose
}

// Lines recovers the plain log lines carried by a rendered chunk.
func Lines(chunk string) []string {
	body := strings.TrimSuffix(strings.TrimPrefix(chunk, fenceOpen), fenceClose)
	return strings.Split(ansi.Strip(body), "\n")
}

package command_test

import (
	"strings"
	"testing"
	"testing/quick"

	"github.com/google/go-cmp/cmp"

	"github.com/zephyrtronium/tilde/command"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"space", " \t\n ", nil},
		{"words", "bocchi ryou nijika", []string{"bocchi", "ryou", "nijika"}},
		{"runs", "  bocchi \t ryou\n", []string{"bocchi", "ryou"}},
		{"double", `"bocchi the rock" kita`, []string{"bocchi the rock", "kita"}},
		{"backtick", "`bocchi the rock` kita", []string{"bocchi the rock", "kita"}},
		{"mixed", "`say \"hi\"` \"it's `fine`\"", []string{`say "hi"`, "it's `fine`"}},
		{"empty-quotes", `"" kita`, []string{"", "kita"}},
		{"unterminated", `"bocchi the rock`, []string{`"bocchi`, "the", "rock"}},
		{"unterminated-backtick", "kita `ikuyo", []string{"kita", "`ikuyo"}},
		{"inner-quote", `bocchi"s rock"`, []string{`bocchi"s`, `rock"`}},
		{"adjacent", `"bocchi"ryou`, []string{"bocchi", "ryou"}},
		{"unicode-space", "bocchi　ryou", []string{"bocchi", "ryou"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := command.Tokenize(c.in)
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Errorf("wrong tokens from %q (+got/-want):\n%s", c.in, diff)
			}
		})
	}
}

func unquote(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '"' || r == '`' {
			return -1
		}
		return r
	}, s)
}

func TestTokenizeRoundTrip(t *testing.T) {
	rejoin := func(s string) bool {
		toks := command.Tokenize(unquote(s))
		again := command.Tokenize(strings.Join(toks, " "))
		return cmp.Equal(toks, again)
	}
	if err := quick.Check(rejoin, nil); err != nil {
		t.Errorf("rejoined tokens differ: %v", err)
	}
	requote := func(s string) bool {
		toks := command.Tokenize(unquote(s))
		q := make([]string, len(toks))
		for i, tok := range toks {
			q[i] = `"` + tok + `"`
		}
		again := command.Tokenize(strings.Join(q, " "))
		return cmp.Equal(toks, again)
	}
	if err := quick.Check(requote, nil); err != nil {
		t.Errorf("quoted tokens differ: %v", err)
	}
}

func TestCut(t *testing.T) {
	cases := []struct {
		name string
		in   string
		tok  string
		rest string
	}{
		{"empty", "", "", ""},
		{"one", "bocchi", "bocchi", ""},
		{"words", "  bocchi the  rock ", "bocchi", "the  rock"},
		{"quoted", `"bocchi the" rock`, "bocchi the", "rock"},
		{"unterminated", `"bocchi the rock`, `"bocchi`, "the rock"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tok, rest := command.Cut(c.in)
			if tok != c.tok || rest != c.rest {
				t.Errorf("wrong cut: want %q %q, got %q %q", c.tok, c.rest, tok, rest)
			}
		})
	}
}

package text

import (
	"strings"
	"unicode"
)

// Effect applies a named effect to text.
// The available effects are "owo", "aaaaa", and "o". Names are not case
// sensitive. Unknown effects leave the text unchanged.
func Effect(name, msg string) string {
	switch {
	case strings.EqualFold(name, "owo"):
		return owoize(msg)
	case strings.EqualFold(name, "aaaaa"):
		return lenlimit(aaaaaize(msg), 40)
	case strings.EqualFold(name, "o"):
		return oize(msg)
	default:
		return msg
	}
}

// lenlimit truncates msg to at most lim runes.
func lenlimit(msg string, lim int) string {
	r := []rune(msg)
	if len(r) <= lim {
		return msg
	}
	return string(r[:lim])
}

func owoize(msg string) string {
	return owoRep.Replace(msg)
}

var owoRep = strings.NewReplacer(
	"r", "w", "R", "W",
	"l", "w", "L", "W",
	"na", "nya", "Na", "Nya", "NA", "NYA",
	"ni", "nyi", "Ni", "Nyi", "NI", "NYI",
	"nu", "nyu", "Nu", "Nyu", "NU", "NYU",
	"ne", "nye", "Ne", "Nye", "NE", "NYE",
	"no", "nyo", "No", "Nyo", "NO", "NYO",
)

func aaaaaize(msg string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return 'A'
		}
		return r
	}, msg)
}

func oize(msg string) string {
	return oRep.Replace(msg)
}

var oRep = strings.NewReplacer(
	"a", "o", "e", "o", "i", "o", "u", "o",
	"A", "O", "E", "O", "I", "O", "U", "O",
)

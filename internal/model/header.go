package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// HeaderTitle turns a raw field name into a column title: underscores become
// spaces and each run of letters is title cased ("mac_address" becomes
// "Mac Address"). Any non-letter, digits included, starts a new word, so
// "ipv4Address" becomes "Ipv4Address" and "l2vni_id" becomes "L2Vni Id".
func HeaderTitle(column string) string {
	// A Caser keeps state and must not be shared between goroutines.
	caser := cases.Title(language.Und)

	var b strings.Builder
	b.Grow(len(column))

	runes := []rune(strings.ReplaceAll(column, "_", " "))
	for i := 0; i < len(runes); {
		j := i
		letters := unicode.IsLetter(runes[i])
		for j < len(runes) && unicode.IsLetter(runes[j]) == letters {
			j++
		}
		if letters {
			b.WriteString(caser.String(string(runes[i:j])))
		} else {
			b.WriteString(string(runes[i:j]))
		}
		i = j
	}
	return b.String()
}

// HeaderKey reverses HeaderTitle for lower snake_case field names.
func HeaderKey(title string) string {
	return strings.ReplaceAll(strings.ToLower(title), " ", "_")
}

// Package profile derives the computed fields of a user record.
//
// Normalize must run before every user insert or profile update. It is a pure
// function of the record and issues no queries.
package profile

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"pollpick/internal/model"
)

// Letters that carry no combining mark under NFD and need an explicit mapping.
var letterFolds = strings.NewReplacer(
	"ø", "o", "Ø", "O",
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ß", "ss",
	"đ", "d", "Đ", "D",
	"ł", "l", "Ł", "L",
	"þ", "th", "Þ", "TH",
	"ı", "i",
)

// Fold strips diacritics and lowercases s. It is used both for stored search
// keys and for incoming search queries so the two always compare equal.
func Fold(s string) string {
	// transform.Chain keeps state, so each call gets its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(letterFolds.Replace(out))
}

// SearchKey builds the folded "name username email[ location]" key.
func SearchKey(u *model.User) string {
	var b strings.Builder
	b.WriteString(deref(u.Name))
	b.WriteByte(' ')
	b.WriteString(u.Username)
	b.WriteByte(' ')
	b.WriteString(deref(u.Email))
	if loc := deref(u.Location); loc != "" {
		b.WriteByte(' ')
		b.WriteString(loc)
	}
	return Fold(b.String())
}

// Normalize recomputes FacebookID, Search and DisplayName in place.
func Normalize(u *model.User) {
	if fb := u.AuthData.Facebook; fb != nil && fb.ID != "" {
		id := fb.ID
		u.FacebookID = &id
	} else {
		u.FacebookID = nil
	}

	if u.IsAnonymous() {
		u.Search = nil
	} else {
		key := SearchKey(u)
		u.Search = &key
	}

	switch {
	case deref(u.Name) != "":
		name := *u.Name
		u.DisplayName = &name
	case u.HasPassword():
		username := u.Username
		u.DisplayName = &username
	default:
		u.DisplayName = nil
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

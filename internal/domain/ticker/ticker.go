package ticker

import "regexp"

// Symbol is a ticker like "$ABC", or Unresolved.
type Symbol string

// Unresolved marks a post without a usable ticker.
const Unresolved Symbol = "unresolved"

// only uppercase ASCII letters directly after '$'; "$ABC2" yields "$ABC"
var pattern = regexp.MustCompile(`\$[A-Z]+`)

// Extract returns the first ticker found in text, or Unresolved.
func Extract(text string) Symbol {
	m := pattern.FindString(text)
	if m == "" {
		return Unresolved
	}
	return Symbol(m)
}

func (s Symbol) Resolved() bool {
	return s != Unresolved && s != ""
}

func (s Symbol) String() string { return string(s) }

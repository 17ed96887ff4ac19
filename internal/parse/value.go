package parse

import "strings"

// Value is the result of a field lookup. A lookup can miss entirely, or hit a field whose
// text is empty; both cases are kept apart.
type Value struct {
	text    string
	present bool
}

// Some returns a present value.
func Some(text string) Value {
	return Value{text: text, present: true}
}

// None returns an absent value.
func None() Value {
	return Value{}
}

// Present reports whether the field was found at all.
func (v Value) Present() bool {
	return v.present
}

// Get returns the text and whether the field was found.
func (v Value) Get() (string, bool) {
	return v.text, v.present
}

// OrElse returns the trimmed text, or def when the field is absent or blank.
func (v Value) OrElse(def string) string {
	if s := strings.TrimSpace(v.text); v.present && s != "" {
		return s
	}
	return def
}

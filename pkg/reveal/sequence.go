// Package reveal paces the character-by-character display of bot replies.
package reveal

// Sequence yields the prefixes of a text one rune at a time, from the empty
// string to the full text. A text of N runes yields exactly N+1 prefixes. A
// Sequence is consumed once; it cannot be restarted.
type Sequence struct {
	runes []rune
	next  int
}

func NewSequence(text string) *Sequence {
	return &Sequence{runes: []rune(text)}
}

// Next returns the next prefix. ok is false once every prefix has been yielded.
func (s *Sequence) Next() (prefix string, ok bool) {
	if s.next > len(s.runes) {
		return "", false
	}

	prefix = string(s.runes[:s.next])
	s.next++
	return prefix, true
}

// Done reports whether the full text has been yielded.
func (s *Sequence) Done() bool {
	return s.next > len(s.runes)
}

// Runes is the length of the full text in runes.
func (s *Sequence) Runes() int {
	return len(s.runes)
}

// Full returns the complete text.
func (s *Sequence) Full() string {
	return string(s.runes)
}

package chat

import "strings"

// Segment is a run of comment text, either plain or an @mention.
type Segment struct {
	Text    string
	Mention bool
}

// Mentions splits comment content into plain and mention segments. Any
// @<non-whitespace-run> token becomes a mention segment including the
// leading @. This is cosmetic post-processing of already-trusted text,
// not a security boundary.
func Mentions(text string) []Segment {
	var segs []Segment
	plain := strings.Builder{}

	flush := func() {
		if plain.Len() > 0 {
			segs = append(segs, Segment{Text: plain.String()})
			plain.Reset()
		}
	}

	i := 0
	for i < len(text) {
		if text[i] == '@' {
			end := i + 1
			for end < len(text) && !isSpace(text[end]) {
				end++
			}
			if end > i+1 {
				flush()
				segs = append(segs, Segment{Text: text[i:end], Mention: true})
				i = end
				continue
			}
		}
		plain.WriteByte(text[i])
		i++
	}
	flush()
	return segs
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

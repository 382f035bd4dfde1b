// Package diff produces structured word-level diffs between an original
// section and its rewrite. Hunks serialise to JSON for storage alongside the
// review record and reassemble losslessly: concatenating the original side of
// every hunk yields the original text, and the rewritten side yields the
// rewrite.
package diff

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Hunk operations.
const (
	OpEqual   = "equal"
	OpInsert  = "insert"
	OpDelete  = "delete"
	OpReplace = "replace"
)

// Hunk is a single diff operation block, ordered by position in the text.
type Hunk struct {
	Index     int    `json:"index"`
	Operation string `json:"operation"`
	Original  string `json:"original"`
	Rewritten string `json:"rewritten"`
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// tokenize splits text into alternating word and whitespace tokens so that
// joining the tokens reproduces the input byte for byte.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}
	var tokens []string
	last := 0
	for _, span := range whitespaceRe.FindAllStringIndex(text, -1) {
		if span[0] > last {
			tokens = append(tokens, text[last:span[0]])
		}
		tokens = append(tokens, text[span[0]:span[1]])
		last = span[1]
	}
	if last < len(text) {
		tokens = append(tokens, text[last:])
	}
	return tokens
}

// alphabet assigns each distinct token a rune so the diff runs over tokens
// rather than characters. Rune values start above the surrogate range to
// stay clear of anything diffmatchpatch treats specially.
type alphabet struct {
	runes  map[string]rune
	tokens []string
}

func newAlphabet() *alphabet {
	return &alphabet{runes: make(map[string]rune)}
}

func (a *alphabet) encode(tokens []string) []rune {
	encoded := make([]rune, len(tokens))
	for i, tok := range tokens {
		r, ok := a.runes[tok]
		if !ok {
			r = rune(0xE000 + len(a.tokens))
			a.runes[tok] = r
			a.tokens = append(a.tokens, tok)
		}
		encoded[i] = r
	}
	return encoded
}

func (a *alphabet) decode(encoded string) string {
	var b strings.Builder
	for _, r := range encoded {
		b.WriteString(a.tokens[int(r)-0xE000])
	}
	return b.String()
}

// Generate produces the word-level diff of two strings. Adjacent delete and
// insert runs collapse into a single replace hunk.
func Generate(original, rewritten string) []Hunk {
	alpha := newAlphabet()
	runesA := alpha.encode(tokenize(original))
	runesB := alpha.encode(tokenize(rewritten))

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMainRunes(runesA, runesB, false)

	var hunks []Hunk
	var pendingDel, pendingIns strings.Builder

	flush := func() {
		del, ins := pendingDel.String(), pendingIns.String()
		pendingDel.Reset()
		pendingIns.Reset()
		switch {
		case del != "" && ins != "":
			hunks = append(hunks, Hunk{Operation: OpReplace, Original: del, Rewritten: ins})
		case del != "":
			hunks = append(hunks, Hunk{Operation: OpDelete, Original: del})
		case ins != "":
			hunks = append(hunks, Hunk{Operation: OpInsert, Rewritten: ins})
		}
	}

	for _, d := range diffs {
		text := alpha.decode(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			pendingDel.WriteString(text)
		case diffmatchpatch.DiffInsert:
			pendingIns.WriteString(text)
		case diffmatchpatch.DiffEqual:
			flush()
			if text != "" {
				hunks = append(hunks, Hunk{Operation: OpEqual, Original: text, Rewritten: text})
			}
		}
	}
	flush()

	for i := range hunks {
		hunks[i].Index = i
	}
	return hunks
}

// ToJSON serialises hunks to a compact JSON array for storage.
func ToJSON(hunks []Hunk) (string, error) {
	if hunks == nil {
		hunks = []Hunk{}
	}
	raw, err := json.Marshal(hunks)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// FromJSON deserialises a stored diff back into hunks.
func FromJSON(raw string) ([]Hunk, error) {
	var hunks []Hunk
	if err := json.Unmarshal([]byte(raw), &hunks); err != nil {
		return nil, err
	}
	return hunks, nil
}

// HasChanges reports whether any hunk is a non-equal operation.
func HasChanges(hunks []Hunk) bool {
	for _, h := range hunks {
		if h.Operation != OpEqual {
			return true
		}
	}
	return false
}

package glossary

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var ErrEmptyField = errors.New("both original and translated terms are required")

// Term maps a source-language string to the fixed rendering the user wants.
type Term struct {
	ID         string `json:"id"`
	Original   string `json:"original"`
	Translated string `json:"translated"`
}

// NewTerm trims both fields and assigns a fresh id.
func NewTerm(original, translated string) (Term, error) {
	t := Term{
		ID:         uuid.NewString(),
		Original:   strings.TrimSpace(original),
		Translated: strings.TrimSpace(translated),
	}
	if err := t.Validate(); err != nil {
		return Term{}, err
	}
	return t, nil
}

// Validate checks the stored-term invariants.
func (t Term) Validate() error {
	if t.Original == "" || t.Translated == "" {
		return ErrEmptyField
	}
	if t.ID == "" {
		return fmt.Errorf("term %q has no id", t.Original)
	}
	return nil
}

// Apply replaces every literal, case-sensitive occurrence of each term's Original
// with its Translated value. Longer originals are applied first; ties keep glossary
// order. Each term runs over the text left by the terms before it.
func Apply(text string, terms []Term) string {
	if len(terms) == 0 || text == "" {
		return text
	}

	ordered := make([]Term, len(terms))
	copy(ordered, terms)
	sort.SliceStable(ordered, func(i, j int) bool {
		return utf8.RuneCountInString(ordered[i].Original) > utf8.RuneCountInString(ordered[j].Original)
	})

	for _, term := range ordered {
		if term.Original == "" {
			continue
		}
		text = strings.ReplaceAll(text, term.Original, term.Translated)
	}
	return text
}

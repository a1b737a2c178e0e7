package store

import (
	"errors"
	"fmt"

	"screen-translate/src/glossary"
)

var ErrTermNotFound = errors.New("glossary term not found")

// Glossary persists terms in display order. Every mutation is written immediately.
type Glossary struct {
	s *Store
}

func (s *Store) Glossary() *Glossary { return &Glossary{s: s} }

// List returns terms in the order they were added.
func (g *Glossary) List() ([]glossary.Term, error) {
	rows, err := g.s.db.Query("SELECT id, original, translated FROM glossary_terms ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list glossary: %w", err)
	}
	defer rows.Close()

	var terms []glossary.Term
	for rows.Next() {
		var t glossary.Term
		if err := rows.Scan(&t.ID, &t.Original, &t.Translated); err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// Add validates t and appends it to the end of the glossary.
func (g *Glossary) Add(t glossary.Term) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := g.s.db.Exec(`
		INSERT INTO glossary_terms (id, original, translated, position)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM glossary_terms))`,
		t.ID, t.Original, t.Translated,
	)
	if err != nil {
		return fmt.Errorf("failed to add glossary term: %w", err)
	}
	return nil
}

// Delete removes the term with the given id.
func (g *Glossary) Delete(id string) error {
	res, err := g.s.db.Exec("DELETE FROM glossary_terms WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete glossary term: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTermNotFound
	}
	return nil
}

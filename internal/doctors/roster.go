// Package doctors holds the fixed doctor roster and its two lookups: exact
// identity correlation for authenticated sessions and fuzzy name matching for
// spoken doctor queries.
package doctors

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when no roster entry matches.
var ErrNotFound = errors.New("doctors: not found")

// minQueryLen guards fuzzy matching against spurious one- and two-letter hits.
const minQueryLen = 3

// Doctor is a roster entry.
type Doctor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Email     string `json:"email"`
}

// Roster is an immutable, ordered list of doctors.
type Roster struct {
	doctors []Doctor
}

// NewRoster copies the given doctors into a roster. Order is preserved and
// decides which entry wins an ambiguous fuzzy match.
func NewRoster(doctors []Doctor) *Roster {
	out := make([]Doctor, len(doctors))
	copy(out, doctors)
	return &Roster{doctors: out}
}

// DefaultRoster returns the clinic's standing roster.
func DefaultRoster() *Roster {
	return NewRoster([]Doctor{
		{ID: "doc1", Name: "Dr. Alisha Mehta", Specialty: "General Physician", Email: "alisha.mehta@medisync.now"},
		{ID: "doc2", Name: "Dr. Vikram Rao", Specialty: "Cardiologist", Email: "vikram.rao@medisync.now"},
		{ID: "doc3", Name: "Dr. Priya Desai", Specialty: "Pediatrician", Email: "priya.desai@medisync.now"},
	})
}

// All returns a copy of the roster.
func (r *Roster) All() []Doctor {
	out := make([]Doctor, len(r.doctors))
	copy(out, r.doctors)
	return out
}

// ByID finds a doctor by exact id.
func (r *Roster) ByID(id string) (Doctor, error) {
	for _, d := range r.doctors {
		if d.ID == id {
			return d, nil
		}
	}
	return Doctor{}, ErrNotFound
}

// ByEmail correlates an authenticated identity to a doctor. The match is exact
// after trimming; there is no fuzzy fallback.
func (r *Roster) ByEmail(email string) (Doctor, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Doctor{}, ErrNotFound
	}
	for _, d := range r.doctors {
		if d.Email == email {
			return d, nil
		}
	}
	return Doctor{}, ErrNotFound
}

// MatchQuery resolves a free-text doctor query (e.g. "Doctor Rao") against the
// roster. Honorifics are stripped from both sides and either string may contain
// the other. Returns false when nothing matches.
func (r *Roster) MatchQuery(query string) (Doctor, bool) {
	q := normalizeName(query)
	if len(q) < minQueryLen {
		return Doctor{}, false
	}
	for _, d := range r.doctors {
		name := normalizeName(d.Name)
		if len(name) < minQueryLen {
			continue
		}
		if strings.Contains(name, q) || strings.Contains(q, name) {
			return d, true
		}
	}
	return Doctor{}, false
}

var honorifics = []string{"doctor ", "dr. ", "dr.", "dr "}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for {
		stripped := false
		for _, h := range honorifics {
			if strings.HasPrefix(s, h) {
				s = strings.TrimSpace(strings.TrimPrefix(s, h))
				stripped = true
			}
		}
		if !stripped {
			break
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

package session

import (
	"sort"
	"strings"

	"fx-compliance-auditor/internal/extract"
	"fx-compliance-auditor/internal/models"
)

// SortOrder orders filtered movements by date
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// Filter selects movements for display. Zero values match everything.
type Filter struct {
	// Year is matched as a prefix of the ISO date, e.g. "2024"
	Year string `json:"year,omitempty"`
	// Month is the two-digit month, e.g. "03"
	Month string `json:"month,omitempty"`
	// Description is a case-insensitive substring
	Description string `json:"description,omitempty"`
	// Amount is a substring of the amount's decimal text
	Amount string    `json:"amount,omitempty"`
	Order  SortOrder `json:"order,omitempty"`
}

// Matches reports whether the movement passes the filter
func (f Filter) Matches(m *models.Movement) bool {
	if f.Year != "" && !strings.HasPrefix(m.Date, f.Year) {
		return false
	}
	if f.Month != "" {
		parts := strings.Split(m.Date, "-")
		if len(parts) < 2 || parts[1] != f.Month {
			return false
		}
	}
	if f.Description != "" && !extract.ContainsFold(m.Description, f.Description) {
		return false
	}
	if f.Amount != "" && !strings.Contains(m.Amount.String(), f.Amount) {
		return false
	}
	return true
}

// Filter returns snapshots of the matching movements sorted by date. Movements
// with the same date keep their collection order.
func (s *Session) Filter(f Filter) []models.Movement {
	var out []models.Movement
	for _, m := range s.movements {
		if f.Matches(m) {
			out = append(out, m.Clone())
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if f.Order == SortDescending {
			return out[i].Date > out[j].Date
		}
		return out[i].Date < out[j].Date
	})
	return out
}

// Years returns the distinct years present in movement dates, ascending
func (s *Session) Years() []string {
	seen := make(map[string]bool)
	var years []string
	for _, m := range s.movements {
		if len(m.Date) < 4 {
			continue
		}
		y := m.Date[:4]
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Strings(years)
	return years
}

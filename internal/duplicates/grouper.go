// Package duplicates finds business identifiers that appear on more than
// one record line, across all loaded record files.
//
// Groups are a projection of the record catalog. The Grouper keeps the
// last projection together with the catalog version it was built from and
// rebuilds it on the first access after the catalog changes. Lines are held
// in an arena and addressed by their stable (fileId, lineId) pair, so an
// edited or removed line can never leave a dangling reference behind.
package duplicates

import (
	"sort"

	"fx-compliance-auditor/internal/extract"
	"fx-compliance-auditor/internal/models"
	"fx-compliance-auditor/pkg/logger"

	"github.com/shopspring/decimal"
)

// LineSource is a versioned collection of record lines. records.Catalog
// satisfies it.
type LineSource interface {
	Version() uint64
	Each(fn func(file *models.RecordFile, line *models.Line))
}

// Summary aggregates every duplicate group
type Summary struct {
	Groups         int             `json:"groups"`
	Locations      int             `json:"locations"`
	Inconsistent   int             `json:"inconsistent"`
	TotalPrimary   decimal.Decimal `json:"totalPrimary"`
	TotalSecondary decimal.Decimal `json:"totalSecondary"`
}

// projection is one build of the groups
type projection struct {
	version uint64
	arena   []models.IdentifierLocation
	groups  []models.DuplicateIdentifierGroup
	// byRef maps a line address to its group position
	byRef map[models.LineRef]int
}

// Grouper computes duplicate identifier groups. It is not safe for
// concurrent use.
type Grouper struct {
	source    LineSource
	extractor *extract.Extractor
	tolerance decimal.Decimal
	current   *projection
	logger    logger.Logger
}

// NewGrouper creates a grouper over source. tolerance is the amount
// difference above which members of a group are flagged inconsistent.
func NewGrouper(source LineSource, ex *extract.Extractor, tolerance decimal.Decimal) *Grouper {
	return &Grouper{
		source:    source,
		extractor: ex,
		tolerance: tolerance,
		logger:    logger.GetGlobalLogger().WithComponent("duplicates"),
	}
}

func (g *Grouper) view() *projection {
	version := g.source.Version()
	if g.current != nil && g.current.version == version {
		return g.current
	}
	g.current = g.build(version)
	g.logger.WithFields(logger.Fields{
		"version": version,
		"groups":  len(g.current.groups),
	}).Debug("duplicate groups rebuilt")
	return g.current
}

func (g *Grouper) build(version uint64) *projection {
	p := &projection{
		version: version,
		byRef:   make(map[models.LineRef]int),
	}

	// identifier -> arena positions, and first-seen order of identifiers
	positions := make(map[string][]int)
	var order []string

	g.source.Each(func(file *models.RecordFile, line *models.Line) {
		id := g.extractor.Identifier(line.Content)
		if id == "" {
			return
		}
		attrs := g.extractor.Attributes(line.Content)

		if _, seen := positions[id]; !seen {
			order = append(order, id)
		}
		positions[id] = append(positions[id], len(p.arena))
		p.arena = append(p.arena, models.IdentifierLocation{
			FileID:    file.ID,
			FileName:  file.Name,
			LineID:    line.ID,
			Primary:   attrs.Primary,
			Secondary: attrs.Secondary,
		})
	})

	for _, id := range order {
		members := positions[id]
		if len(members) < 2 {
			continue
		}

		group := models.DuplicateIdentifierGroup{
			Identifier:     id,
			TotalPrimary:   decimal.Zero,
			TotalSecondary: decimal.Zero,
		}
		for _, pos := range members {
			loc := p.arena[pos]
			group.Locations = append(group.Locations, loc)
			if loc.Primary.Valid {
				group.TotalPrimary = group.TotalPrimary.Add(loc.Primary.Decimal)
			}
			if loc.Secondary.Valid {
				group.TotalSecondary = group.TotalSecondary.Add(loc.Secondary.Decimal)
			}
			p.byRef[loc.Ref()] = len(p.groups)
		}
		group.Inconsistent = g.inconsistent(group.Locations)

		p.groups = append(p.groups, group)
	}

	return p
}

// inconsistent reports whether the members disagree on an amount by more
// than the tolerance. Each attribute is compared only among the members
// that carry it.
func (g *Grouper) inconsistent(locations []models.IdentifierLocation) bool {
	spread := func(get func(models.IdentifierLocation) decimal.NullDecimal) bool {
		var lo, hi decimal.Decimal
		n := 0
		for _, loc := range locations {
			v := get(loc)
			if !v.Valid {
				continue
			}
			if n == 0 || v.Decimal.LessThan(lo) {
				lo = v.Decimal
			}
			if n == 0 || v.Decimal.GreaterThan(hi) {
				hi = v.Decimal
			}
			n++
		}
		return n > 1 && hi.Sub(lo).GreaterThan(g.tolerance)
	}

	return spread(func(l models.IdentifierLocation) decimal.NullDecimal { return l.Primary }) ||
		spread(func(l models.IdentifierLocation) decimal.NullDecimal { return l.Secondary })
}

// Groups returns every identifier that appears on more than one line, in
// the order the identifier was first seen.
func (g *Grouper) Groups() []models.DuplicateIdentifierGroup {
	p := g.view()
	out := make([]models.DuplicateIdentifierGroup, len(p.groups))
	for i, group := range p.groups {
		group.Locations = append([]models.IdentifierLocation(nil), group.Locations...)
		out[i] = group
	}
	return out
}

// Group returns the group of one identifier
func (g *Grouper) Group(identifier string) (models.DuplicateIdentifierGroup, bool) {
	for _, group := range g.Groups() {
		if group.Identifier == identifier {
			return group, true
		}
	}
	return models.DuplicateIdentifierGroup{}, false
}

// LocationOf returns the group containing the line, and the other
// locations of that group, for cross-navigation.
func (g *Grouper) LocationOf(ref models.LineRef) (models.DuplicateIdentifierGroup, []models.IdentifierLocation, bool) {
	p := g.view()
	pos, ok := p.byRef[ref]
	if !ok {
		return models.DuplicateIdentifierGroup{}, nil, false
	}

	group := p.groups[pos]
	var others []models.IdentifierLocation
	for _, loc := range group.Locations {
		if loc.Ref() != ref {
			others = append(others, loc)
		}
	}
	group.Locations = append([]models.IdentifierLocation(nil), group.Locations...)
	return group, others, true
}

// Summary aggregates the current groups
func (g *Grouper) Summary() Summary {
	s := Summary{TotalPrimary: decimal.Zero, TotalSecondary: decimal.Zero}
	for _, group := range g.view().groups {
		s.Groups++
		s.Locations += len(group.Locations)
		if group.Inconsistent {
			s.Inconsistent++
		}
		s.TotalPrimary = s.TotalPrimary.Add(group.TotalPrimary)
		s.TotalSecondary = s.TotalSecondary.Add(group.TotalSecondary)
	}
	return s
}

// Files lists the distinct files involved in a group, sorted by name
func Files(group models.DuplicateIdentifierGroup) []string {
	seen := make(map[string]bool)
	var names []string
	for _, loc := range group.Locations {
		if !seen[loc.FileName] {
			seen[loc.FileName] = true
			names = append(names, loc.FileName)
		}
	}
	sort.Strings(names)
	return names
}

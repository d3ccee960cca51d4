package linker

import (
	"sort"
	"strings"

	"fx-compliance-auditor/internal/extract"
	"fx-compliance-auditor/internal/models"
	"fx-compliance-auditor/pkg/errors"
	"fx-compliance-auditor/pkg/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultExactTolerance is the absolute remaining balance below which a
// selection is considered to reconcile exactly
var DefaultExactTolerance = decimal.RequireFromString("0.01")

// MovementStore is the movement collection the linker reads and saves to.
// session.Session satisfies it.
type MovementStore interface {
	LinkVersion() uint64
	Each(fn func(m *models.Movement))
	ReplaceDeclarationLinks(movementID string, links []models.Link) error
}

// BalanceState classifies a remaining balance
type BalanceState string

const (
	// BalanceUnder means the selection covers less than the movement amount
	BalanceUnder BalanceState = "under"
	// BalanceOver means the selection exceeds the movement amount
	BalanceOver BalanceState = "over"
	// BalanceExact means the selection reconciles with the movement amount
	BalanceExact BalanceState = "exact"
)

// Balance compares a movement amount with a declaration selection
type Balance struct {
	Target    decimal.Decimal `json:"target"`
	Selected  decimal.Decimal `json:"selected"`
	Remaining decimal.Decimal `json:"remaining"`
	State     BalanceState    `json:"state"`
}

// Owner is a movement that links a declaration
type Owner struct {
	MovementID  string `json:"movementId"`
	Description string `json:"description"`
}

// Candidate is one row of the declaration picker
type Candidate struct {
	File     models.DeclarationFile       `json:"file"`
	Meta     *models.ProcessedDeclaration `json:"meta,omitempty"`
	Selected bool                         `json:"selected"`
	// Conflict is the description of another movement already linking
	// this declaration, or ""
	Conflict string `json:"conflict,omitempty"`
}

// SaveResult reports what a save did and what it left unresolved
type SaveResult struct {
	Links     int                `json:"links"`
	Balance   Balance            `json:"balance"`
	Conflicts map[string][]Owner `json:"conflicts,omitempty"`
}

// Linker computes declaration balances and conflicts for movements
type Linker struct {
	catalog        *Catalog
	store          MovementStore
	exactTolerance decimal.Decimal
	logger         logger.Logger

	owners       map[string][]Owner
	ownersBuilt  bool
	ownerVersion uint64
}

// New creates a linker over a declaration catalog and a movement store
func New(catalog *Catalog, store MovementStore) *Linker {
	return &Linker{
		catalog:        catalog,
		store:          store,
		exactTolerance: DefaultExactTolerance,
		logger:         logger.GetGlobalLogger().WithComponent("linker"),
	}
}

// SetExactTolerance overrides DefaultExactTolerance
func (l *Linker) SetExactTolerance(tolerance decimal.Decimal) {
	l.exactTolerance = tolerance
}

// Catalog returns the declaration catalog
func (l *Linker) Catalog() *Catalog {
	return l.catalog
}

func (l *Linker) relations() map[string][]Owner {
	version := l.store.LinkVersion()
	if l.ownersBuilt && l.ownerVersion == version {
		return l.owners
	}

	owners := make(map[string][]Owner)
	l.store.Each(func(m *models.Movement) {
		seen := make(map[string]bool, len(m.LinkedDeclarations))
		for _, link := range m.LinkedDeclarations {
			key := l.catalog.LinkKey(link)
			if seen[key] {
				continue
			}
			seen[key] = true
			owners[key] = append(owners[key], Owner{MovementID: m.ID, Description: m.Description})
		}
	})

	l.owners = owners
	l.ownersBuilt = true
	l.ownerVersion = version
	l.logger.WithFields(logger.Fields{
		"link_version": version,
		"declarations": len(owners),
	}).Debug("relation index rebuilt")
	return owners
}

// Owners returns every movement linking the declaration, in collection order
func (l *Linker) Owners(fileName string) []Owner {
	return append([]Owner(nil), l.relations()[l.catalog.Key(fileName)]...)
}

// ConflictFor returns the description of the first movement other than
// excludeMovementID that links the declaration.
func (l *Linker) ConflictFor(fileName, excludeMovementID string) (string, bool) {
	for _, o := range l.relations()[l.catalog.Key(fileName)] {
		if o.MovementID != excludeMovementID {
			return o.Description, true
		}
	}
	return "", false
}

// SelectedTotal sums the extracted amounts of the selected declarations.
// Declarations without metadata contribute zero; repeated names count once.
func (l *Linker) SelectedTotal(selection []string) decimal.Decimal {
	total := decimal.Zero
	for _, name := range unique(selection) {
		if meta, ok := l.catalog.Meta(name); ok {
			total = total.Add(meta.Amount)
		}
	}
	return total
}

// BalanceFor computes the remaining balance of a movement amount against a
// selection: abs(amount) minus the selected total.
func (l *Linker) BalanceFor(amount decimal.Decimal, selection []string) Balance {
	b := Balance{
		Target:   amount.Abs(),
		Selected: l.SelectedTotal(selection),
	}
	b.Remaining = b.Target.Sub(b.Selected)

	switch {
	case b.Remaining.Abs().LessThan(l.exactTolerance):
		b.State = BalanceExact
	case b.Remaining.IsPositive():
		b.State = BalanceUnder
	default:
		b.State = BalanceOver
	}
	return b
}

// Remaining computes the balance of a stored movement against a selection
func (l *Linker) Remaining(movementID string, selection []string) (Balance, error) {
	m, err := l.movement(movementID)
	if err != nil {
		return Balance{}, err
	}
	return l.BalanceFor(m.Amount, selection), nil
}

// CurrentSelection returns the file names a movement currently links
func (l *Linker) CurrentSelection(movementID string) ([]string, error) {
	m, err := l.movement(movementID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m.LinkedDeclarations))
	for _, link := range m.LinkedDeclarations {
		names = append(names, link.TargetFileName)
	}
	return names, nil
}

type movementInfo struct {
	ID                 string
	Description        string
	Amount             decimal.Decimal
	LinkedDeclarations []models.Link
}

func (l *Linker) movement(id string) (movementInfo, error) {
	var found *movementInfo
	l.store.Each(func(m *models.Movement) {
		if found == nil && m.ID == id {
			found = &movementInfo{
				ID:                 m.ID,
				Description:        m.Description,
				Amount:             m.Amount,
				LinkedDeclarations: append([]models.Link(nil), m.LinkedDeclarations...),
			}
		}
	})
	if found == nil {
		return movementInfo{}, errors.NotFoundError(errors.CodeMovementNotFound, id)
	}
	return *found, nil
}

// Candidates lists the declarations for the picker of one movement.
// Selected declarations come first, then the rest by file name. A non-empty
// search keeps only declarations whose name, number, amount, date or
// numeral contain it, ignoring case and accents.
func (l *Linker) Candidates(movementID string, selection []string, search string) []Candidate {
	selected := make(map[string]bool, len(selection))
	for _, name := range selection {
		selected[name] = true
	}
	term := extract.Fold(search)

	var out []Candidate
	for _, f := range l.catalog.Files() {
		c := Candidate{File: f, Selected: selected[f.Name]}
		if meta, ok := l.catalog.Meta(f.Name); ok {
			c.Meta = &meta
		}
		if term != "" && !strings.Contains(searchText(c), term) {
			continue
		}
		c.Conflict, _ = l.ConflictFor(f.Name, movementID)
		out = append(out, c)
	}

	col := collate.New(language.Spanish)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Selected != out[j].Selected {
			return out[i].Selected
		}
		return col.CompareString(out[i].File.Name, out[j].File.Name) < 0
	})
	return out
}

func searchText(c Candidate) string {
	parts := []string{c.File.Name}
	if c.Meta != nil {
		parts = append(parts, c.Meta.Number, c.Meta.Amount.String(), c.Meta.Date, c.Meta.Numeral)
	}
	return extract.Fold(strings.Join(parts, " "))
}

// Save replaces the movement's declaration links with the selection. Links
// held by other movements are left alone; any such conflicts are reported
// in the result and logged.
func (l *Linker) Save(movementID string, selection []string) (SaveResult, error) {
	m, err := l.movement(movementID)
	if err != nil {
		return SaveResult{}, err
	}

	names := unique(selection)
	links := make([]models.Link, 0, len(names))
	for _, name := range names {
		link := models.Link{
			Type:           models.LinkDeclaration,
			Label:          name,
			TargetFileName: name,
		}
		if f, ok := l.catalog.File(name); ok {
			link.TargetFileID = f.ID
		}
		links = append(links, link)
	}

	result := SaveResult{
		Links:   len(links),
		Balance: l.BalanceFor(m.Amount, names),
	}
	for _, name := range names {
		var others []Owner
		for _, o := range l.Owners(name) {
			if o.MovementID != movementID {
				others = append(others, o)
			}
		}
		if len(others) > 0 {
			if result.Conflicts == nil {
				result.Conflicts = make(map[string][]Owner)
			}
			result.Conflicts[name] = others
		}
	}

	if err := l.store.ReplaceDeclarationLinks(movementID, links); err != nil {
		return SaveResult{}, err
	}

	log := l.logger.WithFields(logger.Fields{
		"movement_id": movementID,
		"links":       result.Links,
		"remaining":   result.Balance.Remaining.String(),
		"state":       result.Balance.State,
	})
	if len(result.Conflicts) > 0 {
		log.WithField("conflicts", len(result.Conflicts)).Warn("declarations saved despite links on other movements")
	} else {
		log.Debug("declaration links saved")
	}
	return result, nil
}

func unique(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

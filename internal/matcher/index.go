package matcher

import (
	"sort"

	"fx-compliance-auditor/internal/extract"
	"fx-compliance-auditor/internal/models"

	"github.com/shopspring/decimal"
)

// LineSource is a versioned collection of record lines. records.Catalog
// satisfies it.
type LineSource interface {
	Version() uint64
	Each(fn func(file *models.RecordFile, line *models.Line))
}

// IndexEntry is one record line with its extracted attributes
type IndexEntry struct {
	FileID     string
	FileName   string
	LineID     string
	Content    string
	Attributes extract.Attributes
}

// LineIndex provides efficient amount lookups over record lines. Entries
// keep their source order so lookups can honour first-match-wins.
type LineIndex struct {
	// Entries holds every indexed line in file and line order
	Entries []IndexEntry

	// CentIndex maps an attribute value rounded to cents to the positions
	// of the entries carrying it
	CentIndex map[int64][]int

	version uint64
}

// NewLineIndex extracts attributes from every line of the source
func NewLineIndex(source LineSource, ex *extract.Extractor) *LineIndex {
	index := &LineIndex{
		CentIndex: make(map[int64][]int),
		version:   source.Version(),
	}

	source.Each(func(file *models.RecordFile, line *models.Line) {
		attrs := ex.Attributes(line.Content)
		if !attrs.Primary.Valid && !attrs.Secondary.Valid {
			return
		}

		pos := len(index.Entries)
		index.Entries = append(index.Entries, IndexEntry{
			FileID:     file.ID,
			FileName:   file.Name,
			LineID:     line.ID,
			Content:    line.Content,
			Attributes: attrs,
		})

		primary := int64(0)
		if attrs.Primary.Valid {
			primary = cents(attrs.Primary.Decimal)
			index.CentIndex[primary] = append(index.CentIndex[primary], pos)
		}
		if attrs.Secondary.Valid {
			if secondary := cents(attrs.Secondary.Decimal); !attrs.Primary.Valid || secondary != primary {
				index.CentIndex[secondary] = append(index.CentIndex[secondary], pos)
			}
		}
	})

	return index
}

func cents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// Version returns the source version the index was built from
func (li *LineIndex) Version() uint64 {
	return li.version
}

// Candidates returns the entries whose attributes may fall within tolerance
// of target, in source order. Callers must still apply the exact tolerance
// check; cent rounding makes the range slightly wider than tolerance.
func (li *LineIndex) Candidates(target, tolerance decimal.Decimal) []IndexEntry {
	low := target.Sub(tolerance).Shift(2).Floor().IntPart()
	high := target.Add(tolerance).Shift(2).Ceil().IntPart()

	seen := make(map[int]bool)
	var positions []int
	for c := low; c <= high; c++ {
		for _, pos := range li.CentIndex[c] {
			if !seen[pos] {
				seen[pos] = true
				positions = append(positions, pos)
			}
		}
	}
	sort.Ints(positions)

	out := make([]IndexEntry, len(positions))
	for i, pos := range positions {
		out[i] = li.Entries[pos]
	}
	return out
}

// IndexStats describes the size of an index
type IndexStats struct {
	Lines   int `json:"lines"`
	Buckets int `json:"buckets"`
}

// Stats returns index statistics
func (li *LineIndex) Stats() IndexStats {
	return IndexStats{Lines: len(li.Entries), Buckets: len(li.CentIndex)}
}

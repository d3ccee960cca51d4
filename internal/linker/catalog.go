// Package linker relates bank movements to the declaration documents that
// support them.
//
// Movements reference declarations by file name. The linker resolves those
// names to stable declaration IDs through a Catalog and keeps a relation
// index from declaration ID to the movements that link it, so conflict
// checks are map lookups instead of scans over every movement. The index is
// rebuilt whenever the movement store reports a new link version.
//
// Balances and conflicts are advisory values. Nothing here blocks a save.
package linker

import (
	"strings"

	"fx-compliance-auditor/internal/models"
)

// Catalog is the set of declaration files available for linking and the
// metadata extracted from them, associated by file name.
type Catalog struct {
	files  []models.DeclarationFile
	byName map[string]int
	byID   map[string]int
	meta   map[string]models.ProcessedDeclaration
}

// NewCatalog builds a catalog. Files without an ID use their name as ID;
// duplicate names keep the first file. Metadata for names with no file is
// still reachable through Meta, so totals never depend on upload order.
func NewCatalog(files []models.DeclarationFile, metadata []models.ProcessedDeclaration) *Catalog {
	c := &Catalog{
		byName: make(map[string]int, len(files)),
		byID:   make(map[string]int, len(files)),
		meta:   make(map[string]models.ProcessedDeclaration, len(metadata)),
	}

	for _, f := range files {
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			continue
		}
		if _, dup := c.byName[f.Name]; dup {
			continue
		}
		if f.ID == "" {
			f.ID = f.Name
		}
		c.byName[f.Name] = len(c.files)
		c.byID[f.ID] = len(c.files)
		c.files = append(c.files, f)
	}

	for _, m := range metadata {
		if _, dup := c.meta[m.FileName]; !dup {
			c.meta[m.FileName] = m
		}
	}
	return c
}

// Files returns the declaration files in catalog order
func (c *Catalog) Files() []models.DeclarationFile {
	return append([]models.DeclarationFile(nil), c.files...)
}

// Len returns the number of declaration files
func (c *Catalog) Len() int {
	return len(c.files)
}

// File looks up a declaration file by name
func (c *Catalog) File(fileName string) (models.DeclarationFile, bool) {
	i, ok := c.byName[fileName]
	if !ok {
		return models.DeclarationFile{}, false
	}
	return c.files[i], true
}

// Meta returns the extracted metadata of a declaration file
func (c *Catalog) Meta(fileName string) (models.ProcessedDeclaration, bool) {
	m, ok := c.meta[fileName]
	return m, ok
}

// Key returns the relation key of a file name: the catalog ID when the
// file is known, otherwise a name-derived key.
func (c *Catalog) Key(fileName string) string {
	if i, ok := c.byName[fileName]; ok {
		return c.files[i].ID
	}
	return "name:" + fileName
}

// LinkKey returns the relation key of a declaration link, preferring its
// target ID when the catalog knows it.
func (c *Catalog) LinkKey(link models.Link) string {
	if link.TargetFileID != "" {
		if _, ok := c.byID[link.TargetFileID]; ok {
			return link.TargetFileID
		}
	}
	return c.Key(link.TargetFileName)
}

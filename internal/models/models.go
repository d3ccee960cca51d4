// Package models holds the plain data records shared by every component of
// the audit engine: bank movements and their operations, the three-axis
// compliance review, weak links to record lines and declarations, and the
// record files and declaration metadata supplied by external loaders.
//
// Every type here is a plain serializable structure. None of them carries
// functions, channels or handles, so the persistence collaborator can encode
// them directly.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO calendar date layout used by movements and corrections
const DateLayout = "2006-01-02"

// Axis identifies one of the three compliance review dimensions
type Axis string

const (
	// AxisDocumental is the documentary support review
	AxisDocumental Axis = "documental"
	// AxisBanrep is the central-bank reporting review
	AxisBanrep Axis = "banrep"
	// AxisDIAN is the tax-authority filing review
	AxisDIAN Axis = "dian"
)

// Axes lists every review axis in display order
var Axes = []Axis{AxisDocumental, AxisBanrep, AxisDIAN}

// String returns the string representation of Axis
func (a Axis) String() string {
	return string(a)
}

// IsValid checks if the axis is one of the known review dimensions
func (a Axis) IsValid() bool {
	return a == AxisDocumental || a == AxisBanrep || a == AxisDIAN
}

// ParseAxis parses an axis name, case-insensitively
func ParseAxis(s string) (Axis, error) {
	axis := Axis(strings.ToLower(strings.TrimSpace(s)))
	if !axis.IsValid() {
		return "", fmt.Errorf("invalid review axis '%s': must be documental, banrep or dian", s)
	}
	return axis, nil
}

// CorrectionStatus records whether a finding has been corrected
type CorrectionStatus string

const (
	CorrectionDone    CorrectionStatus = "CORREGIDO"
	CorrectionPending CorrectionStatus = "SIN CORREGIR"
)

// ParseCorrectionStatus parses a correction label. An empty label clears the
// correction and yields nil.
func ParseCorrectionStatus(s string) (*CorrectionStatus, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch CorrectionStatus(s) {
	case "":
		return nil, nil
	case CorrectionDone, CorrectionPending:
		status := CorrectionStatus(s)
		return &status, nil
	default:
		return nil, fmt.Errorf("invalid correction status '%s'", s)
	}
}

// AxisReview is the review state of one operation on one axis. Status is the
// free-text label chosen by the auditor; the correction fields only carry
// meaning when that label denotes a finding.
type AxisReview struct {
	Status           string            `json:"status" yaml:"status"`
	CorrectionStatus *CorrectionStatus `json:"correctionStatus" yaml:"correctionStatus"`
	CorrectionDate   *string           `json:"correctionDate" yaml:"correctionDate"`
}

// Clone returns a copy that shares no pointers with the receiver
func (r AxisReview) Clone() AxisReview {
	out := AxisReview{Status: r.Status}
	if r.CorrectionStatus != nil {
		status := *r.CorrectionStatus
		out.CorrectionStatus = &status
	}
	if r.CorrectionDate != nil {
		date := *r.CorrectionDate
		out.CorrectionDate = &date
	}
	return out
}

// ReviewData holds the three independent axis reviews of an operation
type ReviewData struct {
	Documental AxisReview `json:"documental" yaml:"documental"`
	Banrep     AxisReview `json:"banrep" yaml:"banrep"`
	DIAN       AxisReview `json:"dian" yaml:"dian"`
	Comments   string     `json:"comments" yaml:"comments"`
}

// Axis returns a pointer to the review of the given axis, or nil
func (r *ReviewData) Axis(axis Axis) *AxisReview {
	switch axis {
	case AxisDocumental:
		return &r.Documental
	case AxisBanrep:
		return &r.Banrep
	case AxisDIAN:
		return &r.DIAN
	default:
		return nil
	}
}

// Clone returns a deep copy of the review data
func (r ReviewData) Clone() ReviewData {
	return ReviewData{
		Documental: r.Documental.Clone(),
		Banrep:     r.Banrep.Clone(),
		DIAN:       r.DIAN.Clone(),
		Comments:   r.Comments,
	}
}

// Operation is an independently reviewable portion of a movement
type Operation struct {
	ID              string          `json:"id" yaml:"id"`
	Amount          decimal.Decimal `json:"amount" yaml:"amount"`
	IncludeInReview bool            `json:"includeInReview" yaml:"includeInReview"`
	ReviewData      ReviewData      `json:"reviewData" yaml:"reviewData"`
}

// Clone returns a deep copy of the operation
func (o Operation) Clone() Operation {
	o.ReviewData = o.ReviewData.Clone()
	return o
}

// LinkType distinguishes the two kinds of weak references a movement holds
type LinkType string

const (
	LinkXML         LinkType = "xml"
	LinkDeclaration LinkType = "declaration"
)

// Link is a weak reference from a movement to a record line or a
// declaration file. It holds lookup keys only and owns nothing.
type Link struct {
	Type           LinkType `json:"type" yaml:"type"`
	Label          string   `json:"label" yaml:"label"`
	TargetFileID   string   `json:"targetFileId,omitempty" yaml:"targetFileId,omitempty"`
	TargetLineID   string   `json:"targetLineId,omitempty" yaml:"targetLineId,omitempty"`
	TargetFileName string   `json:"targetFileName" yaml:"targetFileName"`
}

// Movement is one bank-statement transaction under audit. Amount is the
// source-of-truth total that the operations should add up to.
type Movement struct {
	ID                 string          `json:"id" yaml:"id"`
	Date               string          `json:"date" yaml:"date"`
	Description        string          `json:"description" yaml:"description"`
	Amount             decimal.Decimal `json:"amount" yaml:"amount"`
	SourceFile         string          `json:"sourceFile" yaml:"sourceFile"`
	Operations         []Operation     `json:"operations" yaml:"operations"`
	LinkedDeclarations []Link          `json:"linkedDeclarations" yaml:"linkedDeclarations"`
	LinkedXMLs         []Link          `json:"linkedXmls" yaml:"linkedXmls"`
	Incomplete         bool            `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`
}

// SplitTotal returns the sum of the operation amounts
func (m *Movement) SplitTotal() decimal.Decimal {
	total := decimal.Zero
	for _, op := range m.Operations {
		total = total.Add(op.Amount)
	}
	return total
}

// SplitDifference returns the movement amount minus the operation total
func (m *Movement) SplitDifference() decimal.Decimal {
	return m.Amount.Sub(m.SplitTotal())
}

// IsSplitBalanced reports whether the operations reconcile to the movement
// amount, i.e. the absolute difference is strictly below tolerance.
func (m *Movement) IsSplitBalanced(tolerance decimal.Decimal) bool {
	return m.SplitDifference().Abs().LessThan(tolerance)
}

// Operation returns a pointer to the operation with the given ID, or nil
func (m *Movement) Operation(id string) *Operation {
	for i := range m.Operations {
		if m.Operations[i].ID == id {
			return &m.Operations[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the movement
func (m Movement) Clone() Movement {
	out := m
	out.Operations = make([]Operation, len(m.Operations))
	for i, op := range m.Operations {
		out.Operations[i] = op.Clone()
	}
	out.LinkedDeclarations = append([]Link{}, m.LinkedDeclarations...)
	out.LinkedXMLs = append([]Link{}, m.LinkedXMLs...)
	return out
}

// LineStatus is the review state of a record line
type LineStatus string

const (
	LineStatusPending  LineStatus = "pending"
	LineStatusReviewed LineStatus = "reviewed"
)

// Line is one line of a record file. Content is opaque text.
type Line struct {
	ID      string     `json:"id" yaml:"id"`
	Content string     `json:"content" yaml:"content"`
	Status  LineStatus `json:"status" yaml:"status"`
	Comment string     `json:"comment" yaml:"comment"`
}

// RecordFile is a loaded exchange-operation record file
type RecordFile struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Lines []Line `json:"lines" yaml:"lines"`
}

// Clone returns a copy of the file with its own line slice
func (f RecordFile) Clone() RecordFile {
	f.Lines = append([]Line{}, f.Lines...)
	return f
}

// LineRef addresses a record line by stable identifiers rather than by
// position, which changes whenever lines are edited or removed.
type LineRef struct {
	FileID string `json:"fileId" yaml:"fileId"`
	LineID string `json:"lineId" yaml:"lineId"`
}

// String returns the string representation of LineRef
func (r LineRef) String() string {
	return r.FileID + "/" + r.LineID
}

// DeclarationFile is one declaration document available for linking
type DeclarationFile struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ProcessedDeclaration is metadata extracted from a declaration document,
// associated with its file by FileName.
type ProcessedDeclaration struct {
	ID            string          `json:"id" yaml:"id"`
	FileName      string          `json:"fileName" yaml:"fileName"`
	Date          string          `json:"date" yaml:"date"`
	Amount        decimal.Decimal `json:"amount" yaml:"amount"`
	Number        string          `json:"number" yaml:"number"`
	Numeral       string          `json:"numeral" yaml:"numeral"`
	ContentSample string          `json:"contentSample" yaml:"contentSample"`
}

// ReviewStatus is the outcome of reviewing a declaration document
type ReviewStatus string

const (
	ReviewPending          ReviewStatus = "pending"
	ReviewApproved         ReviewStatus = "approved"
	ReviewCorrectionNeeded ReviewStatus = "correction_needed"
)

// IsValid checks if the status is one of the known review outcomes
func (s ReviewStatus) IsValid() bool {
	return s == ReviewPending || s == ReviewApproved || s == ReviewCorrectionNeeded
}

// DeclarationReview records the auditor's verdict on a declaration document
type DeclarationReview struct {
	FileID          string       `json:"fileId" yaml:"fileId"`
	FileName        string       `json:"fileName" yaml:"fileName"`
	Status          ReviewStatus `json:"status" yaml:"status"`
	AuditorComments string       `json:"auditorComments" yaml:"auditorComments"`
	ReviewedBy      string       `json:"reviewedBy,omitempty" yaml:"reviewedBy,omitempty"`
	ReviewedAt      string       `json:"reviewedAt,omitempty" yaml:"reviewedAt,omitempty"`
}

// RawMovement is a transaction as returned by the statement extraction
// collaborator. Amount is left untyped because extracted values arrive as
// numbers, numeric strings or not at all.
type RawMovement struct {
	Date        string      `json:"date" yaml:"date"`
	Description string      `json:"description" yaml:"description"`
	Amount      interface{} `json:"amount" yaml:"amount"`
}

// RawDeclaration is declaration metadata as returned by the extraction collaborator
type RawDeclaration struct {
	ID       string      `json:"id" yaml:"id"`
	FileName string      `json:"fileName" yaml:"fileName"`
	Date     string      `json:"date" yaml:"date"`
	Amount   interface{} `json:"amount" yaml:"amount"`
	Number   string      `json:"number" yaml:"number"`
	Numeral  string      `json:"numeral" yaml:"numeral"`
	Content  string      `json:"contentSample" yaml:"contentSample"`
}

// IdentifierLocation is one line that carries a repeated business identifier
type IdentifierLocation struct {
	FileID    string              `json:"fileId" yaml:"fileId"`
	FileName  string              `json:"fileName" yaml:"fileName"`
	LineID    string              `json:"lineId" yaml:"lineId"`
	Primary   decimal.NullDecimal `json:"primary" yaml:"primary"`
	Secondary decimal.NullDecimal `json:"secondary" yaml:"secondary"`
}

// Ref returns the stable address of the location
func (l IdentifierLocation) Ref() LineRef {
	return LineRef{FileID: l.FileID, LineID: l.LineID}
}

// DuplicateIdentifierGroup gathers every line sharing one identifier. It is
// derived data and is always rebuilt from the source lines.
type DuplicateIdentifierGroup struct {
	Identifier     string               `json:"identifier" yaml:"identifier"`
	Locations      []IdentifierLocation `json:"locations" yaml:"locations"`
	TotalPrimary   decimal.Decimal      `json:"totalPrimary" yaml:"totalPrimary"`
	TotalSecondary decimal.Decimal      `json:"totalSecondary" yaml:"totalSecondary"`
	Inconsistent   bool                 `json:"inconsistent" yaml:"inconsistent"`
}

// IsISODate checks whether s is a valid YYYY-MM-DD calendar date
func IsISODate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

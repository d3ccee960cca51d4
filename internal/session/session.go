// Package session owns the editable movement collection of one audit.
//
// A Session is the single owner of every Movement, its Operations and their
// ReviewData. All mutations happen in place through its methods, each of
// which either applies completely or returns an error and leaves the
// collection untouched. Reads return deep copies so callers can never alter
// the collection behind the session's back.
//
// A Session is not safe for concurrent use. One audit is edited by one
// user at a time; callers that share a session across goroutines must
// serialise access themselves.
package session

import (
	"strings"
	"time"

	"fx-compliance-auditor/internal/extract"
	"fx-compliance-auditor/internal/models"
	"fx-compliance-auditor/pkg/errors"
	"fx-compliance-auditor/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultSplitTolerance is the absolute difference below which a movement's
// operations are considered to reconcile with its amount
var DefaultSplitTolerance = decimal.RequireFromString("0.01")

// ReviewField names one of the editable fields of an AxisReview
type ReviewField string

const (
	FieldStatus           ReviewField = "status"
	FieldCorrectionStatus ReviewField = "correctionStatus"
	FieldCorrectionDate   ReviewField = "correctionDate"
)

// ParseReviewField parses a review field name
func ParseReviewField(s string) (ReviewField, error) {
	switch f := ReviewField(strings.TrimSpace(s)); f {
	case FieldStatus, FieldCorrectionStatus, FieldCorrectionDate:
		return f, nil
	default:
		return "", errors.ValidationError(errors.CodeInvalidField, "field", s, nil)
	}
}

// Option configures a Session
type Option func(*Session)

// WithSplitTolerance overrides DefaultSplitTolerance
func WithSplitTolerance(tolerance decimal.Decimal) Option {
	return func(s *Session) {
		s.splitTolerance = tolerance
	}
}

// WithIDGenerator replaces the UUID generator used for new movements and operations
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) {
		s.newID = gen
	}
}

// WithClock replaces the clock used to date placeholder movements
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithLogger replaces the component logger
func WithLogger(log logger.Logger) Option {
	return func(s *Session) {
		s.logger = log
	}
}

// Session is the single-owner controller of a movement collection
type Session struct {
	movements      []*models.Movement
	splitTolerance decimal.Decimal
	newID          func() string
	now            func() time.Time
	logger         logger.Logger

	// version changes on every mutation, linkVersion only when
	// declaration links change
	version     uint64
	linkVersion uint64
}

// New creates a session owning deep copies of the given movements
func New(movements []models.Movement, opts ...Option) *Session {
	s := &Session{
		splitTolerance: DefaultSplitTolerance,
		newID:          uuid.NewString,
		now:            time.Now,
		logger:         logger.GetGlobalLogger().WithComponent("session"),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, m := range movements {
		clone := m.Clone()
		if len(clone.Operations) == 0 {
			// every movement keeps at least one operation
			clone.Operations = []models.Operation{s.newOperation(clone.Amount)}
		}
		s.movements = append(s.movements, &clone)
	}

	s.logger.WithField("movements", len(s.movements)).Debug("session created")
	return s
}

func (s *Session) newOperation(amount decimal.Decimal) models.Operation {
	return models.Operation{
		ID:              s.newID(),
		Amount:          amount,
		IncludeInReview: true,
	}
}

func (s *Session) touch(links bool) {
	s.version++
	if links {
		s.linkVersion++
	}
}

// Version returns a counter that changes on every mutation
func (s *Session) Version() uint64 {
	return s.version
}

// LinkVersion returns a counter that changes whenever any movement's
// declaration links change, including movement deletion and ingestion.
func (s *Session) LinkVersion() uint64 {
	return s.linkVersion
}

// SplitTolerance returns the tolerance used by IsBalanced
func (s *Session) SplitTolerance() decimal.Decimal {
	return s.splitTolerance
}

// Len returns the number of movements
func (s *Session) Len() int {
	return len(s.movements)
}

// Movements returns a snapshot of every movement in collection order
func (s *Session) Movements() []models.Movement {
	out := make([]models.Movement, len(s.movements))
	for i, m := range s.movements {
		out[i] = m.Clone()
	}
	return out
}

// Movement returns a snapshot of one movement
func (s *Session) Movement(id string) (models.Movement, error) {
	m, err := s.find(id)
	if err != nil {
		return models.Movement{}, err
	}
	return m.Clone(), nil
}

// Each calls fn with every movement in collection order. The movement must
// not be retained or modified; it is only valid for the duration of the call.
func (s *Session) Each(fn func(m *models.Movement)) {
	for _, m := range s.movements {
		fn(m)
	}
}

func (s *Session) find(id string) (*models.Movement, error) {
	for _, m := range s.movements {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, errors.NotFoundError(errors.CodeMovementNotFound, id)
}

func (s *Session) findOperation(movementID, operationID string) (*models.Movement, *models.Operation, error) {
	m, err := s.find(movementID)
	if err != nil {
		return nil, nil, err
	}
	op := m.Operation(operationID)
	if op == nil {
		return nil, nil, errors.NotFoundError(errors.CodeOperationNotFound, operationID).
			WithContext("movement_id", movementID)
	}
	return m, op, nil
}

// SplitDifference returns the movement amount minus the sum of its operations
func (s *Session) SplitDifference(movementID string) (decimal.Decimal, error) {
	m, err := s.find(movementID)
	if err != nil {
		return decimal.Zero, err
	}
	return m.SplitDifference(), nil
}

// IsBalanced reports whether the movement's operations reconcile with its amount
func (s *Session) IsBalanced(movementID string) (bool, error) {
	m, err := s.find(movementID)
	if err != nil {
		return false, err
	}
	return m.IsSplitBalanced(s.splitTolerance), nil
}

// AddSplit appends a zero-amount operation to the movement and returns its ID
func (s *Session) AddSplit(movementID string) (string, error) {
	m, err := s.find(movementID)
	if err != nil {
		return "", err
	}

	op := s.newOperation(decimal.Zero)
	m.Operations = append(m.Operations, op)
	s.touch(false)

	s.logger.WithFields(logger.Fields{
		"movement_id":  movementID,
		"operation_id": op.ID,
		"operations":   len(m.Operations),
	}).Debug("split added")
	return op.ID, nil
}

// RemoveSplit removes an operation. Removing the only operation of a
// movement is rejected with a guard error.
func (s *Session) RemoveSplit(movementID, operationID string) error {
	m, _, err := s.findOperation(movementID, operationID)
	if err != nil {
		return err
	}

	if len(m.Operations) == 1 {
		s.logger.WithFields(logger.Fields{
			"movement_id":  movementID,
			"operation_id": operationID,
		}).Warn("refusing to remove the only operation of a movement")
		return errors.GuardError(errors.CodeLastOperation, movementID)
	}

	kept := m.Operations[:0]
	for _, op := range m.Operations {
		if op.ID != operationID {
			kept = append(kept, op)
		}
	}
	m.Operations = kept
	s.touch(false)

	s.logger.WithFields(logger.Fields{
		"movement_id":  movementID,
		"operation_id": operationID,
	}).Debug("split removed")
	return nil
}

// SetOperationAmount sets an operation amount
func (s *Session) SetOperationAmount(movementID, operationID string, amount decimal.Decimal) error {
	_, op, err := s.findOperation(movementID, operationID)
	if err != nil {
		return err
	}
	op.Amount = amount
	s.touch(false)
	return nil
}

// SetOperationAmountFloat sets an operation amount from a float. NaN and
// infinities are stored as zero.
func (s *Session) SetOperationAmountFloat(movementID, operationID string, value float64) error {
	return s.SetOperationAmount(movementID, operationID, extract.FiniteOrZero(value))
}

// SetOperationAmountText sets an operation amount from user input. Text that
// is not a number is stored as zero.
func (s *Session) SetOperationAmountText(movementID, operationID, value string) error {
	return s.SetOperationAmount(movementID, operationID, extract.AmountOrZero(value))
}

// UpdateAxisReview replaces a single field of one axis review. The other
// axes and fields of the operation are left as they were. An empty value
// clears the correction fields.
func (s *Session) UpdateAxisReview(movementID, operationID string, axis models.Axis, field ReviewField, value string) error {
	_, op, err := s.findOperation(movementID, operationID)
	if err != nil {
		return err
	}

	review := op.ReviewData.Axis(axis)
	if review == nil {
		return errors.ValidationError(errors.CodeInvalidAxis, "axis", axis, nil)
	}

	updated := review.Clone()
	switch field {
	case FieldStatus:
		updated.Status = value
	case FieldCorrectionStatus:
		status, err := models.ParseCorrectionStatus(value)
		if err != nil {
			return errors.ValidationError(errors.CodeInvalidCorrection, string(field), value, err)
		}
		updated.CorrectionStatus = status
	case FieldCorrectionDate:
		value = strings.TrimSpace(value)
		if value == "" {
			updated.CorrectionDate = nil
			break
		}
		if !models.IsISODate(value) {
			return errors.ValidationError(errors.CodeInvalidDate, string(field), value, nil)
		}
		updated.CorrectionDate = &value
	default:
		return errors.ValidationError(errors.CodeInvalidField, "field", field, nil)
	}

	*review = updated
	s.touch(false)

	s.logger.WithFields(logger.Fields{
		"movement_id":  movementID,
		"operation_id": operationID,
		"axis":         axis,
		"field":        field,
	}).Debug("axis review updated")
	return nil
}

// SetComments replaces the auditor comments of an operation
func (s *Session) SetComments(movementID, operationID, comments string) error {
	_, op, err := s.findOperation(movementID, operationID)
	if err != nil {
		return err
	}
	op.ReviewData.Comments = comments
	s.touch(false)
	return nil
}

// SetIncludeInReview includes or excludes an operation from the dashboard
func (s *Session) SetIncludeInReview(movementID, operationID string, include bool) error {
	_, op, err := s.findOperation(movementID, operationID)
	if err != nil {
		return err
	}
	op.IncludeInReview = include
	s.touch(false)
	return nil
}

// DeleteMovement removes a movement together with its operations and links
func (s *Session) DeleteMovement(movementID string) error {
	for i, m := range s.movements {
		if m.ID != movementID {
			continue
		}
		s.movements = append(s.movements[:i], s.movements[i+1:]...)
		s.touch(true)
		s.logger.WithField("movement_id", movementID).Debug("movement deleted")
		return nil
	}
	return errors.NotFoundError(errors.CodeMovementNotFound, movementID)
}

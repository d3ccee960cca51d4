package session

import (
	"fx-compliance-auditor/internal/models"
	"fx-compliance-auditor/pkg/errors"
	"fx-compliance-auditor/pkg/logger"
)

// LinkXML records an explicit link from a movement to a record line. An
// explicit link takes precedence over the auto-matcher's proposal. Linking
// the same line twice is a no-op.
func (s *Session) LinkXML(movementID string, file models.RecordFile, lineID, label string) error {
	m, err := s.find(movementID)
	if err != nil {
		return err
	}
	if lineID == "" {
		return errors.ValidationError(errors.CodeMissingField, "lineId", lineID, nil)
	}

	for _, l := range m.LinkedXMLs {
		if l.TargetFileID == file.ID && l.TargetLineID == lineID {
			return nil
		}
	}

	if label == "" {
		label = file.Name
	}
	m.LinkedXMLs = append(m.LinkedXMLs, models.Link{
		Type:           models.LinkXML,
		Label:          label,
		TargetFileID:   file.ID,
		TargetLineID:   lineID,
		TargetFileName: file.Name,
	})
	s.touch(false)

	s.logger.WithFields(logger.Fields{
		"movement_id": movementID,
		"file_id":     file.ID,
		"line_id":     lineID,
	}).Debug("record line linked")
	return nil
}

// UnlinkXML removes the explicit link to a record line, if present
func (s *Session) UnlinkXML(movementID string, ref models.LineRef) error {
	m, err := s.find(movementID)
	if err != nil {
		return err
	}

	kept := m.LinkedXMLs[:0]
	for _, l := range m.LinkedXMLs {
		if l.TargetFileID != ref.FileID || l.TargetLineID != ref.LineID {
			kept = append(kept, l)
		}
	}
	if len(kept) != len(m.LinkedXMLs) {
		m.LinkedXMLs = kept
		s.touch(false)
	}
	return nil
}

// ReplaceDeclarationLinks replaces every declaration link of a movement.
// Links held by other movements are not touched.
func (s *Session) ReplaceDeclarationLinks(movementID string, links []models.Link) error {
	m, err := s.find(movementID)
	if err != nil {
		return err
	}

	replaced := make([]models.Link, 0, len(links))
	seen := make(map[string]bool, len(links))
	for _, l := range links {
		if l.TargetFileName == "" || seen[l.TargetFileName] {
			continue
		}
		seen[l.TargetFileName] = true
		l.Type = models.LinkDeclaration
		if l.Label == "" {
			l.Label = l.TargetFileName
		}
		replaced = append(replaced, l)
	}

	m.LinkedDeclarations = replaced
	s.touch(true)

	s.logger.WithFields(logger.Fields{
		"movement_id":  movementID,
		"declarations": len(replaced),
	}).Debug("declaration links replaced")
	return nil
}

// AddDeclarationLink links one declaration file to a movement. Linking a
// file that is already linked is a no-op.
func (s *Session) AddDeclarationLink(movementID string, file models.DeclarationFile) error {
	m, err := s.find(movementID)
	if err != nil {
		return err
	}
	if file.Name == "" {
		return errors.ValidationError(errors.CodeMissingField, "fileName", file.Name, nil)
	}

	for _, l := range m.LinkedDeclarations {
		if l.TargetFileName == file.Name {
			return nil
		}
	}

	m.LinkedDeclarations = append(m.LinkedDeclarations, models.Link{
		Type:           models.LinkDeclaration,
		Label:          file.Name,
		TargetFileID:   file.ID,
		TargetFileName: file.Name,
	})
	s.touch(true)
	return nil
}

// RemoveDeclarationLink unlinks a declaration file from a movement, if linked
func (s *Session) RemoveDeclarationLink(movementID, fileName string) error {
	m, err := s.find(movementID)
	if err != nil {
		return err
	}

	kept := m.LinkedDeclarations[:0]
	for _, l := range m.LinkedDeclarations {
		if l.TargetFileName != fileName {
			kept = append(kept, l)
		}
	}
	if len(kept) != len(m.LinkedDeclarations) {
		m.LinkedDeclarations = kept
		s.touch(true)
	}
	return nil
}

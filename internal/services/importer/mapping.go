package importer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/expressions"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/normalizers"
)

// rowMapper turns one CSV row into a donor create request according to the
// job's column mappings
type rowMapper struct {
	header    map[string]int
	columns   []string
	mappings  []models.ImportColumnMapping
	evaluator *expressions.Evaluator
}

func newRowMapper(header []string, mappings []models.ImportColumnMapping, evaluator *expressions.Evaluator) (*rowMapper, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	for _, m := range mappings {
		if m.JMESPath {
			if err := evaluator.Validate(m.Source); err != nil {
				return nil, fmt.Errorf("mapping for %q: %w", m.TargetField, err)
			}
			continue
		}
		if _, ok := index[m.Source]; !ok {
			return nil, fmt.Errorf("mapping for %q: column %q not in header", m.TargetField, m.Source)
		}
	}

	return &rowMapper{
		header:    index,
		columns:   header,
		mappings:  mappings,
		evaluator: evaluator,
	}, nil
}

// mapRow resolves every mapping against the row and builds the request.
// JMESPath mappings are evaluated against an object keyed by header name,
// with JSON cells parsed so expressions can reach into them.
func (m *rowMapper) mapRow(record []string) (*models.CreateDonorRequest, error) {
	var rowObject map[string]any

	req := &models.CreateDonorRequest{}
	for _, mapping := range m.mappings {
		var value string
		if mapping.JMESPath {
			if rowObject == nil {
				rowObject = m.rowToObject(record)
			}
			evaluated, err := m.evaluator.EvaluateString(mapping.Source, rowObject)
			if err != nil {
				return nil, err
			}
			value = evaluated
		} else {
			idx := m.header[mapping.Source]
			if idx >= len(record) {
				continue
			}
			value = record[idx]
		}

		value = normalizers.ApplyChain(value, mapping.Normalizers...)
		if value == "" {
			continue
		}
		if err := setField(req, mapping.TargetField, value); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// rowToObject builds the JMESPath evaluation target. Cells holding JSON
// objects or arrays are parsed, everything else stays a string.
func (m *rowMapper) rowToObject(record []string) map[string]any {
	obj := make(map[string]any, len(m.columns))
	for i, name := range m.columns {
		if i >= len(record) {
			break
		}
		cell := record[i]
		trimmed := strings.TrimSpace(cell)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var parsed any
			if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
				obj[strings.TrimSpace(name)] = parsed
				continue
			}
		}
		obj[strings.TrimSpace(name)] = cell
	}
	return obj
}

func setField(req *models.CreateDonorRequest, field, value string) error {
	switch field {
	case "first_name":
		req.FirstName = value
	case "last_name":
		req.LastName = value
	case "email":
		req.Email = value
	case "phone":
		req.Phone = value
	case "address":
		req.Address = value
	case "city":
		req.City = value
	case "state":
		req.State = value
	case "zip":
		req.Zip = value
	case "donor_type":
		req.DonorType = strings.ToLower(value)
	case "student_name":
		req.StudentName = value
	case "grade_level":
		req.GradeLevel = value
	case "preferred_contact_method":
		req.PreferredContactMethod = strings.ToLower(value)
	case "alumni_year":
		year, err := parseYear(value)
		if err != nil {
			return fmt.Errorf("alumni_year: %w", err)
		}
		req.AlumniYear = year
	case "graduation_year":
		year, err := parseYear(value)
		if err != nil {
			return fmt.Errorf("graduation_year: %w", err)
		}
		req.GraduationYear = year
	case "email_subscribed", "phone_subscribed", "mail_subscribed":
		parsed, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			return fmt.Errorf("%s: %q is not a boolean", field, value)
		}
		switch field {
		case "email_subscribed":
			req.EmailSubscribed = &parsed
		case "phone_subscribed":
			req.PhoneSubscribed = &parsed
		default:
			req.MailSubscribed = &parsed
		}
	default:
		// Unrecognized targets land in custom fields rather than failing
		// the row.
		if req.CustomFields == nil {
			req.CustomFields = map[string]any{}
		}
		req.CustomFields[field] = value
	}
	return nil
}

func parseYear(value string) (*int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("%q is not a year", value)
	}
	if year < 1900 || year > 2200 {
		return nil, fmt.Errorf("%d is out of range", year)
	}
	return &year, nil
}

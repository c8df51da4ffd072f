// Package schema is the authoritative catalog of donor fields: each field's
// semantic type, the operators legal for it, and the closed option lists for
// select fields. Segment validation and the field discovery endpoint both
// read from here.
package schema

// FieldType is the semantic type of a donor field
type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeNumber   FieldType = "number"
	FieldTypeCurrency FieldType = "currency"
	FieldTypeDate     FieldType = "date"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeSelect   FieldType = "select"
)

// Operator names for segment rules
const (
	OpEquals             = "equals"
	OpNotEquals          = "not_equals"
	OpContains           = "contains"
	OpNotContains        = "not_contains"
	OpGreaterThan        = "greater_than"
	OpLessThan           = "less_than"
	OpGreaterThanOrEqual = "greater_than_or_equal"
	OpLessThanOrEqual    = "less_than_or_equal"
	OpBetween            = "between"
	OpIn                 = "in"
	OpNotIn              = "not_in"
	OpInLastDays         = "in_last_days"
	OpNotInLastDays      = "not_in_last_days"
	OpIsNull             = "is_null"
	OpIsNotNull          = "is_not_null"
)

// Option is a legal value for a select field
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldDefinition describes one donor field available to segment rules
type FieldDefinition struct {
	Name      string    `json:"name"`
	Label     string    `json:"label"`
	Type      FieldType `json:"type"`
	Operators []string  `json:"operators"`
	Options   []Option  `json:"options,omitempty"`
}

// Operator lists are fixed per type. Segment builder UIs render them in this
// order, so the order is part of the contract.
var (
	stringOperators = []string{OpEquals, OpNotEquals, OpContains, OpNotContains, OpIsNull, OpIsNotNull}
	numberOperators = []string{OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual, OpBetween, OpIsNull, OpIsNotNull}
	selectOperators = []string{OpEquals, OpNotEquals, OpIn, OpNotIn}
	boolOperators   = []string{OpEquals}
	dateOperators   = []string{OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual, OpInLastDays, OpNotInLastDays, OpIsNull, OpIsNotNull}
)

// OperatorsForType returns the legal operator list for a field type
func OperatorsForType(t FieldType) []string {
	switch t {
	case FieldTypeString:
		return stringOperators
	case FieldTypeNumber, FieldTypeCurrency:
		return numberOperators
	case FieldTypeSelect:
		return selectOperators
	case FieldTypeBoolean:
		return boolOperators
	case FieldTypeDate:
		return dateOperators
	default:
		return nil
	}
}

var donorTypeOptions = []Option{
	{Value: "parent", Label: "Parent"},
	{Value: "alumni", Label: "Alumni"},
	{Value: "community", Label: "Community Member"},
	{Value: "staff", Label: "Staff"},
	{Value: "foundation", Label: "Foundation"},
}

var engagementLevelOptions = []Option{
	{Value: "new", Label: "New"},
	{Value: "active", Label: "Active"},
	{Value: "engaged", Label: "Engaged"},
	{Value: "at_risk", Label: "At Risk"},
	{Value: "lapsed", Label: "Lapsed"},
}

var giftSizeTierOptions = []Option{
	{Value: "grassroots", Label: "Grassroots"},
	{Value: "mid_level", Label: "Mid-Level"},
	{Value: "major", Label: "Major Donor"},
}

var contactMethodOptions = []Option{
	{Value: "email", Label: "Email"},
	{Value: "phone", Label: "Phone"},
	{Value: "mail", Label: "Mail"},
}

func field(name, label string, t FieldType, options ...Option) FieldDefinition {
	return FieldDefinition{
		Name:      name,
		Label:     label,
		Type:      t,
		Operators: OperatorsForType(t),
		Options:   options,
	}
}

// fieldOrder preserves the display order for the discovery endpoint
var fieldOrder = []FieldDefinition{
	field("first_name", "First Name", FieldTypeString),
	field("last_name", "Last Name", FieldTypeString),
	field("email", "Email", FieldTypeString),
	field("phone", "Phone", FieldTypeString),
	field("address", "Street Address", FieldTypeString),
	field("city", "City", FieldTypeString),
	field("state", "State", FieldTypeString),
	field("zip", "Zip Code", FieldTypeString),
	field("donor_type", "Donor Type", FieldTypeSelect, donorTypeOptions...),
	field("student_name", "Student Name", FieldTypeString),
	field("grade_level", "Grade Level", FieldTypeString),
	field("alumni_year", "Alumni Year", FieldTypeNumber),
	field("graduation_year", "Graduation Year", FieldTypeNumber),
	field("total_donated", "Lifetime Giving", FieldTypeCurrency),
	field("average_donation", "Average Gift", FieldTypeCurrency),
	field("donation_count", "Total Donations", FieldTypeNumber),
	field("engagement_score", "Engagement Score", FieldTypeNumber),
	field("engagement_level", "Engagement Level", FieldTypeSelect, engagementLevelOptions...),
	field("gift_size_tier", "Gift Size Tier", FieldTypeSelect, giftSizeTierOptions...),
	field("preferred_contact_method", "Preferred Contact Method", FieldTypeSelect, contactMethodOptions...),
	field("is_recurring", "Recurring Donor", FieldTypeBoolean),
	field("email_subscribed", "Email Opt-In", FieldTypeBoolean),
	field("phone_subscribed", "Phone Opt-In", FieldTypeBoolean),
	field("mail_subscribed", "Mail Opt-In", FieldTypeBoolean),
	field("last_donation_date", "Last Donation Date", FieldTypeDate),
	field("first_donation_date", "First Donation Date", FieldTypeDate),
	field("created_at", "Created", FieldTypeDate),
}

var fieldsByName = func() map[string]FieldDefinition {
	m := make(map[string]FieldDefinition, len(fieldOrder))
	for _, f := range fieldOrder {
		m[f.Name] = f
	}
	return m
}()

// Lookup returns the definition for a donor field. Unknown fields report
// absence, never panic.
func Lookup(name string) (FieldDefinition, bool) {
	def, ok := fieldsByName[name]
	return def, ok
}

// Fields returns all field definitions in display order
func Fields() []FieldDefinition {
	out := make([]FieldDefinition, len(fieldOrder))
	copy(out, fieldOrder)
	return out
}

// OperatorLegal reports whether an operator is in the field's operator list
func (f FieldDefinition) OperatorLegal(op string) bool {
	for _, o := range f.Operators {
		if o == op {
			return true
		}
	}
	return false
}

// OptionLegal reports whether a value is in a select field's option list.
// Non-select fields accept any value.
func (f FieldDefinition) OptionLegal(value string) bool {
	if f.Type != FieldTypeSelect {
		return true
	}
	for _, o := range f.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

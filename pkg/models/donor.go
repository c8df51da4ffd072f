package models

import (
	"time"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/database"
)

// DonorType constants
const (
	DonorTypeParent     = "parent"
	DonorTypeAlumni     = "alumni"
	DonorTypeCommunity  = "community"
	DonorTypeStaff      = "staff"
	DonorTypeFoundation = "foundation"
)

// Donor represents a donor record. Optional scalar columns are pointers so
// NULL survives the round trip; empty strings on string columns mean absent.
type Donor struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email,omitempty" db:"email"`
	Phone     string `json:"phone,omitempty" db:"phone"`

	Address string `json:"address,omitempty" db:"address"`
	City    string `json:"city,omitempty" db:"city"`
	State   string `json:"state,omitempty" db:"state"`
	Zip     string `json:"zip,omitempty" db:"zip"`

	DonorType      string `json:"donor_type,omitempty" db:"donor_type"`
	StudentName    string `json:"student_name,omitempty" db:"student_name"`
	GradeLevel     string `json:"grade_level,omitempty" db:"grade_level"`
	AlumniYear     *int   `json:"alumni_year,omitempty" db:"alumni_year"`
	GraduationYear *int   `json:"graduation_year,omitempty" db:"graduation_year"`

	TotalDonated    *float64   `json:"total_donated,omitempty" db:"total_donated"`
	AverageDonation *float64   `json:"average_donation,omitempty" db:"average_donation"`
	DonationCount   *int       `json:"donation_count,omitempty" db:"donation_count"`
	EngagementScore *float64   `json:"engagement_score,omitempty" db:"engagement_score"`
	EngagementLevel string     `json:"engagement_level,omitempty" db:"engagement_level"`
	GiftSizeTier    string     `json:"gift_size_tier,omitempty" db:"gift_size_tier"`
	LastDonation    *time.Time `json:"last_donation_date,omitempty" db:"last_donation_date"`
	FirstDonation   *time.Time `json:"first_donation_date,omitempty" db:"first_donation_date"`

	PreferredContactMethod string `json:"preferred_contact_method,omitempty" db:"preferred_contact_method"`
	IsRecurring            *bool  `json:"is_recurring,omitempty" db:"is_recurring"`
	EmailSubscribed        *bool  `json:"email_subscribed,omitempty" db:"email_subscribed"`
	PhoneSubscribed        *bool  `json:"phone_subscribed,omitempty" db:"phone_subscribed"`
	MailSubscribed         *bool  `json:"mail_subscribed,omitempty" db:"mail_subscribed"`

	CustomFields database.JSONB[map[string]any] `json:"custom_fields,omitempty" db:"custom_fields"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Value returns the donor's value for a catalog field name. The second
// return is false when the value is absent (empty string, nil pointer),
// which segment null operators treat differently from a present value.
func (d *Donor) Value(field string) (any, bool) {
	switch field {
	case "first_name":
		return stringValue(d.FirstName)
	case "last_name":
		return stringValue(d.LastName)
	case "email":
		return stringValue(d.Email)
	case "phone":
		return stringValue(d.Phone)
	case "address":
		return stringValue(d.Address)
	case "city":
		return stringValue(d.City)
	case "state":
		return stringValue(d.State)
	case "zip":
		return stringValue(d.Zip)
	case "donor_type":
		return stringValue(d.DonorType)
	case "student_name":
		return stringValue(d.StudentName)
	case "grade_level":
		return stringValue(d.GradeLevel)
	case "alumni_year":
		return intValue(d.AlumniYear)
	case "graduation_year":
		return intValue(d.GraduationYear)
	case "total_donated":
		return floatValue(d.TotalDonated)
	case "average_donation":
		return floatValue(d.AverageDonation)
	case "donation_count":
		return intValue(d.DonationCount)
	case "engagement_score":
		return floatValue(d.EngagementScore)
	case "engagement_level":
		return stringValue(d.EngagementLevel)
	case "gift_size_tier":
		return stringValue(d.GiftSizeTier)
	case "preferred_contact_method":
		return stringValue(d.PreferredContactMethod)
	case "is_recurring":
		return boolValue(d.IsRecurring)
	case "email_subscribed":
		return boolValue(d.EmailSubscribed)
	case "phone_subscribed":
		return boolValue(d.PhoneSubscribed)
	case "mail_subscribed":
		return boolValue(d.MailSubscribed)
	case "last_donation_date":
		return timeValue(d.LastDonation)
	case "first_donation_date":
		return timeValue(d.FirstDonation)
	case "created_at":
		if d.CreatedAt.IsZero() {
			return nil, false
		}
		return d.CreatedAt, true
	default:
		if d.CustomFields.GetValue() != nil {
			if v, ok := d.CustomFields.GetValue()[field]; ok && v != nil {
				return v, true
			}
		}
		return nil, false
	}
}

// FullName joins first and last name with a single space
func (d *Donor) FullName() string {
	switch {
	case d.FirstName == "":
		return d.LastName
	case d.LastName == "":
		return d.FirstName
	default:
		return d.FirstName + " " + d.LastName
	}
}

func stringValue(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	return s, true
}

func intValue(v *int) (any, bool) {
	if v == nil {
		return nil, false
	}
	return *v, true
}

func floatValue(v *float64) (any, bool) {
	if v == nil {
		return nil, false
	}
	return *v, true
}

func boolValue(v *bool) (any, bool) {
	if v == nil {
		return nil, false
	}
	return *v, true
}

func timeValue(v *time.Time) (any, bool) {
	if v == nil {
		return nil, false
	}
	return *v, true
}

// CreateDonorRequest is the request to create a donor
type CreateDonorRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Phone     string `json:"phone,omitempty"`

	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`

	DonorType      string `json:"donor_type,omitempty" validate:"omitempty,oneof=parent alumni community staff foundation"`
	StudentName    string `json:"student_name,omitempty"`
	GradeLevel     string `json:"grade_level,omitempty"`
	AlumniYear     *int   `json:"alumni_year,omitempty"`
	GraduationYear *int   `json:"graduation_year,omitempty"`

	PreferredContactMethod string `json:"preferred_contact_method,omitempty" validate:"omitempty,oneof=email phone mail"`
	EmailSubscribed        *bool  `json:"email_subscribed,omitempty"`
	PhoneSubscribed        *bool  `json:"phone_subscribed,omitempty"`
	MailSubscribed         *bool  `json:"mail_subscribed,omitempty"`

	CustomFields map[string]any `json:"custom_fields,omitempty"`

	// SkipDuplicateCheck bypasses the high-confidence duplicate block
	SkipDuplicateCheck bool `json:"skip_duplicate_check,omitempty"`
}

// UpdateDonorRequest is the request to update a donor. Nil pointers leave
// the column unchanged.
type UpdateDonorRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone     *string `json:"phone,omitempty"`

	Address *string `json:"address,omitempty"`
	City    *string `json:"city,omitempty"`
	State   *string `json:"state,omitempty"`
	Zip     *string `json:"zip,omitempty"`

	DonorType      *string `json:"donor_type,omitempty" validate:"omitempty,oneof=parent alumni community staff foundation"`
	StudentName    *string `json:"student_name,omitempty"`
	GradeLevel     *string `json:"grade_level,omitempty"`
	AlumniYear     *int    `json:"alumni_year,omitempty"`
	GraduationYear *int    `json:"graduation_year,omitempty"`

	PreferredContactMethod *string `json:"preferred_contact_method,omitempty" validate:"omitempty,oneof=email phone mail"`
	EmailSubscribed        *bool   `json:"email_subscribed,omitempty"`
	PhoneSubscribed        *bool   `json:"phone_subscribed,omitempty"`
	MailSubscribed         *bool   `json:"mail_subscribed,omitempty"`

	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

// DonorListResponse is the response for listing donors
type DonorListResponse struct {
	Items      []Donor `json:"items"`
	TotalCount int     `json:"total_count"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
}

// CreateRelationshipRequest records a relationship between two donors
type CreateRelationshipRequest struct {
	RelatedDonorID string `json:"related_donor_id" validate:"required,uuid"`
	Type           string `json:"type" validate:"required,oneof=household_member parent_of works_with refers"`
}

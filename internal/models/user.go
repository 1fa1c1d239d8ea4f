package models

import (
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	contactPattern = regexp.MustCompile(`^[0-9]{10}$`)
	emailPattern   = regexp.MustCompile(`^\S+@\S+\.\S+$`)
)

// IsValidContact reports whether s is an exactly-10-digit contact number.
func IsValidContact(s string) bool {
	return contactPattern.MatchString(s)
}

// IsValidEmail does a shape check only; deliverability is not our problem.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// User represents a campus user. A user record is created either through
// signup (with credentials) or implicitly by the identity resolver when a
// seller or buyer is first referenced.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	RollNo       string             `bson:"roll_no,omitempty" json:"rollNo,omitempty"` // unique once set, upper-cased
	Contact      string             `bson:"contact" json:"contact"`                    // unique, 10 digits
	Hostel       string             `bson:"hostel" json:"hostel"`
	Email        string             `bson:"email,omitempty" json:"email,omitempty"` // unique if present, lower-cased
	PasswordHash string             `bson:"password,omitempty" json:"-"`
	IsAdmin      bool               `bson:"is_admin" json:"is_admin"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// Profile is the free-form identity tuple the resolver maps to a durable
// User. RollNo and Email are optional.
type Profile struct {
	Name    string `json:"name"`
	RollNo  string `json:"rollNo"`
	Contact string `json:"contact"`
	Hostel  string `json:"hostel"`
	Email   string `json:"email"`
}

// Normalize applies the canonical forms: roll numbers upper-case, emails
// lower-case, surrounding whitespace stripped.
func (p *Profile) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.RollNo = strings.ToUpper(strings.TrimSpace(p.RollNo))
	p.Contact = strings.TrimSpace(p.Contact)
	p.Hostel = strings.TrimSpace(p.Hostel)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
}

// Validate checks the tuple before any lookup or mutation happens.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if !IsValidContact(p.Contact) {
		return &ValidationError{Field: "contact", Reason: "must be exactly 10 digits"}
	}
	if p.Hostel == "" {
		return &ValidationError{Field: "hostel", Reason: "is required"}
	}
	if p.Email != "" && !IsValidEmail(p.Email) {
		return &ValidationError{Field: "email", Reason: "is not a valid email address"}
	}
	return nil
}

// UserHistory is the sold/bought summary for a single user, assembled by
// explicit queries against the listings collection.
type UserHistory struct {
	Name             string    `json:"name"`
	RollNo           string    `json:"rollNo,omitempty"`
	Contact          string    `json:"contact"`
	Hostel           string    `json:"hostel"`
	Sold             []Listing `json:"sold"`
	Bought           []Listing `json:"bought"`
	TotalSoldValue   float64   `json:"totalSoldValue"`
	TotalBoughtValue float64   `json:"totalBoughtValue"`
}

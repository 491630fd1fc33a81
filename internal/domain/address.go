package domain

import "strings"

// Address is a user delivery address. At most one address per user carries
// IsDefault=true; the client enforces this best-effort by clearing the flag
// on all local items before setting a new default. The server remains the
// source of truth.
type Address struct {
	ID           string `json:"id"`
	FullName     string `json:"full_name"`
	PhoneNumber  string `json:"phone_number"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	AddressType  string `json:"address_type"` // "home", "work", "other"
	IsDefault    bool   `json:"is_default"`
}

func (a Address) EntityID() string { return a.ID }

// Validate runs client-side field checks. A ValidationError never reaches
// the network layer.
func (a Address) Validate() error {
	if strings.TrimSpace(a.FullName) == "" {
		return &ValidationError{Field: "full_name", Reason: "full name is required"}
	}
	if !validPhone(a.PhoneNumber) {
		return &ValidationError{Field: "phone_number", Reason: "phone number must be 10-15 digits"}
	}
	if strings.TrimSpace(a.AddressLine1) == "" {
		return &ValidationError{Field: "address_line1", Reason: "address line is required"}
	}
	if strings.TrimSpace(a.City) == "" {
		return &ValidationError{Field: "city", Reason: "city is required"}
	}
	if !validPostalCode(a.PostalCode) {
		return &ValidationError{Field: "postal_code", Reason: "postal code must be 4-10 digits"}
	}
	return nil
}

func validPhone(s string) bool {
	s = strings.TrimPrefix(s, "+")
	if len(s) < 10 || len(s) > 15 {
		return false
	}
	return digitsOnly(s)
}

func validPostalCode(s string) bool {
	if len(s) < 4 || len(s) > 10 {
		return false
	}
	return digitsOnly(s)
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

package auth

import "github.com/joao-fontenele/marketplace/internal/domain"

// Capability is a named boolean permission held by a user. The set is
// closed: guards constructed with an unknown capability fail loudly at
// wiring time instead of silently denying everyone.
type Capability string

const (
	CapabilitySeller Capability = "seller"
	CapabilityStaff  Capability = "staff"
	CapabilityAdmin  Capability = "admin"
)

func (c Capability) Valid() bool {
	switch c {
	case CapabilitySeller, CapabilityStaff, CapabilityAdmin:
		return true
	}
	return false
}

func HasCapability(u *domain.User, c Capability) bool {
	if u == nil {
		return false
	}
	switch c {
	case CapabilitySeller:
		return u.IsVendor
	case CapabilityStaff:
		return u.IsStaff
	case CapabilityAdmin:
		return u.IsSuperuser
	}
	return false
}

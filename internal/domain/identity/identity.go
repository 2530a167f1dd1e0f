// Package identity models cart ownership: either an anonymous guest session
// or an authenticated user. The identity's slot key addresses the locally
// persisted cart for that owner.
package identity

// GuestKey is the persistence slot shared by all anonymous sessions of one
// client. Authenticated carts use the user id as their slot key.
const GuestKey = "guest"

// Identity is a cart owner. The zero value is the guest identity.
type Identity struct {
	userID string
}

// Guest returns the anonymous identity.
func Guest() Identity {
	return Identity{}
}

// User returns the identity of an authenticated user. An empty id degrades
// to the guest identity.
func User(id string) Identity {
	return Identity{userID: id}
}

// IsGuest reports whether the identity is anonymous.
func (i Identity) IsGuest() bool {
	return i.userID == ""
}

// UserID returns the stable user id, or "" for a guest.
func (i Identity) UserID() string {
	return i.userID
}

// SlotKey returns the local persistence key for this identity.
func (i Identity) SlotKey() string {
	if i.userID == "" {
		return GuestKey
	}
	return i.userID
}

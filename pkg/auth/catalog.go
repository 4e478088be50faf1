// Package auth maps authorization tokens to capability grants. The catalog
// is immutable after construction; unknown tokens grant nothing and the
// caller treats them as unauthorized.
package auth

import (
	"github.com/discofleet/skylink/pkg/session"
)

// Catalog resolves tokens to permission grants.
type Catalog struct {
	grants map[string]session.Permissions
}

// NewCatalog builds a catalog from token → grant entries. The map is copied.
func NewCatalog(grants map[string]session.Permissions) *Catalog {
	c := &Catalog{grants: make(map[string]session.Permissions, len(grants))}
	for token, g := range grants {
		c.grants[token] = g
	}
	return c
}

// DefaultCatalog returns the built-in table: one full-control grant and one
// camera-only observer grant. Deployments override it via config.
func DefaultCatalog() *Catalog {
	return NewCatalog(map[string]session.Permissions{
		"pilot": {
			IsSuperUser:         true,
			CanPilotingPitch:    true,
			CanPilotingRoll:     true,
			CanPilotingThrottle: true,
			CanMoveCamera:       true,
			CanUseAutonomy:      true,
		},
		"observer": {
			CanMoveCamera: true,
		},
	})
}

// IsKnown reports whether token has a grant. Callers check this before
// Resolve.
func (c *Catalog) IsKnown(token string) bool {
	_, ok := c.grants[token]
	return ok
}

// Resolve returns the grant for a known token. Unknown tokens resolve to the
// empty grant.
func (c *Catalog) Resolve(token string) session.Permissions {
	return c.grants[token]
}

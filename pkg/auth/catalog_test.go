package auth

import (
	"testing"

	"github.com/discofleet/skylink/pkg/session"
)

func TestResolveKnownToken(t *testing.T) {
	c := NewCatalog(map[string]session.Permissions{
		"full": {IsSuperUser: true, CanPilotingPitch: true},
	})

	if !c.IsKnown("full") {
		t.Fatal("token should be known")
	}
	got := c.Resolve("full")
	if !got.IsSuperUser || !got.CanPilotingPitch {
		t.Errorf("grant = %+v", got)
	}
}

func TestUnknownTokenGrantsNothing(t *testing.T) {
	c := DefaultCatalog()

	if c.IsKnown("guessed") {
		t.Fatal("unknown token reported known")
	}
	if got := c.Resolve("guessed"); got != (session.Permissions{}) {
		t.Errorf("unknown token resolved to %+v, want empty grant", got)
	}
}

func TestCatalogIsCopied(t *testing.T) {
	grants := map[string]session.Permissions{"a": {CanMoveCamera: true}}
	c := NewCatalog(grants)
	grants["b"] = session.Permissions{IsSuperUser: true}

	if c.IsKnown("b") {
		t.Error("catalog should not observe mutations of the source map")
	}
}

package interceptors

import (
	"context"
	"testing"
)

func TestWithIdentity_SetsAllValues(t *testing.T) {
	ctx := WithIdentity(context.Background(), "user-1", "session-1")

	identityID, ok := GetIdentityID(ctx)
	if !ok {
		t.Fatal("GetIdentityID should return true")
	}
	if identityID != "user-1" {
		t.Errorf("identity_id = %q, want %q", identityID, "user-1")
	}

	sessionID, ok := GetSessionID(ctx)
	if !ok {
		t.Fatal("GetSessionID should return true")
	}
	if sessionID != "session-1" {
		t.Errorf("session_id = %q, want %q", sessionID, "session-1")
	}
}

func TestGetIdentityID_ReturnsFalseWhenNotSet(t *testing.T) {
	if v, ok := GetIdentityID(context.Background()); ok || v != "" {
		t.Errorf("GetIdentityID = (%q, %v), want (\"\", false)", v, ok)
	}
	if v, ok := GetSessionID(context.Background()); ok || v != "" {
		t.Errorf("GetSessionID = (%q, %v), want (\"\", false)", v, ok)
	}
}

func TestGetIdentityID_EmptyIsUnset(t *testing.T) {
	ctx := WithIdentity(context.Background(), "", "")
	if _, ok := GetIdentityID(ctx); ok {
		t.Error("empty identity id should report false")
	}
}

func TestWithIdentity_ContextIsolation(t *testing.T) {
	parent := context.Background()
	a := WithIdentity(parent, "user-a", "session-a")
	b := WithIdentity(parent, "user-b", "session-b")

	if v, _ := GetIdentityID(a); v != "user-a" {
		t.Errorf("ctx a identity = %q", v)
	}
	if v, _ := GetIdentityID(b); v != "user-b" {
		t.Errorf("ctx b identity = %q", v)
	}
	if _, ok := GetIdentityID(parent); ok {
		t.Error("parent context must not see child values")
	}
}

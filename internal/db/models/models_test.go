package models

import "testing"

func strPtr(s string) *string { return &s }

// ---------------------------------------------------------------------------
// Project visibility
// ---------------------------------------------------------------------------

func TestProject_CanView(t *testing.T) {
	tests := []struct {
		name       string
		visibility string
		viewer     string
		want       bool
	}{
		{"public anonymous", VisibilityPublic, "", true},
		{"public other user", VisibilityPublic, "user-2", true},
		{"private owner", VisibilityPrivate, "user-1", true},
		{"private other user", VisibilityPrivate, "user-2", false},
		{"private anonymous", VisibilityPrivate, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Project{UserID: "user-1", Visibility: tt.visibility}
			if got := p.CanView(tt.viewer); got != tt.want {
				t.Errorf("CanView(%q) = %v, want %v", tt.viewer, got, tt.want)
			}
		})
	}
}

func TestProject_IsOwner_EmptyUser(t *testing.T) {
	p := &Project{UserID: ""}
	if p.IsOwner("") {
		t.Error("empty user id must never own a project")
	}
}

func TestValidVisibility(t *testing.T) {
	for v, want := range map[string]bool{"public": true, "private": true, "unlisted": false, "": false} {
		if got := ValidVisibility(v); got != want {
			t.Errorf("ValidVisibility(%q) = %v, want %v", v, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// ProviderCredential
// ---------------------------------------------------------------------------

func TestProviderCredential_ModelOr(t *testing.T) {
	var nilCred *ProviderCredential
	if got := nilCred.ModelOr("gpt-3.5-turbo"); got != "gpt-3.5-turbo" {
		t.Errorf("nil ModelOr = %q", got)
	}
	c := &ProviderCredential{Model: strPtr("")}
	if got := c.ModelOr("d"); got != "d" {
		t.Errorf("empty ModelOr = %q", got)
	}
	c.Model = strPtr("gpt-4o")
	if got := c.ModelOr("d"); got != "gpt-4o" {
		t.Errorf("ModelOr = %q", got)
	}
}

func TestProviderCredential_HasKey(t *testing.T) {
	if (&ProviderCredential{}).HasKey() {
		t.Error("HasKey() true with nil key")
	}
	if (&ProviderCredential{APIKey: strPtr("")}).HasKey() {
		t.Error("HasKey() true with empty key")
	}
	if !(&ProviderCredential{APIKey: strPtr("abcd")}).HasKey() {
		t.Error("HasKey() false with key")
	}
}

// ---------------------------------------------------------------------------
// UserSettings
// ---------------------------------------------------------------------------

func TestDefaultUserSettings(t *testing.T) {
	s := DefaultUserSettings("user-1")
	if s.Theme != ThemeLight || s.FontSize != 16 || s.UserID != "user-1" {
		t.Errorf("DefaultUserSettings() = %+v", s)
	}
}

func TestValidTheme(t *testing.T) {
	for _, th := range []string{"light", "dark", "system"} {
		if !ValidTheme(th) {
			t.Errorf("ValidTheme(%q) = false", th)
		}
	}
	if ValidTheme("sepia") {
		t.Error("ValidTheme(sepia) = true")
	}
}

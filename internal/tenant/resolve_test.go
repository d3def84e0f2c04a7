package tenant

import (
	"net/http/httptest"
	"testing"
)

func TestResolve_Precedence(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/organizations/7/projects?organizationId=11", nil)
	r.Header.Set(HeaderName, "9")

	id, ok := Resolve(r)
	if !ok {
		t.Fatal("Resolve: expected tenant")
	}
	if id != 7 {
		t.Errorf("id = %d, want 7", id)
	}
}

func TestResolve_Sources(t *testing.T) {
	testCases := []struct {
		name   string
		target string
		header string
		wantID int64
		wantOK bool
	}{
		{"path only", "/organizations/5", "", 5, true},
		{"path with trailing segments", "/v1/organizations/12/sprints/3", "", 12, true},
		{"header when no path", "/v1/projects", "9", 9, true},
		{"query when no path or header", "/v1/projects?organizationId=11", "", 11, true},
		{"header beats query", "/v1/projects?organizationId=11", "9", 9, true},
		{"unparseable path falls back to header", "/organizations/abc/x", "9", 9, true},
		{"unparseable header falls back to query", "/x?organizationId=3", "nope", 3, true},
		{"all unparseable", "/organizations/x?organizationId=y", "z", 0, false},
		{"negative id skipped", "/organizations/-4", "", 0, false},
		{"zero id skipped", "/x?organizationId=0", "", 0, false},
		{"nothing", "/v1/auth/login", "", 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tc.target, nil)
			if tc.header != "" {
				r.Header.Set(HeaderName, tc.header)
			}
			id, ok := Resolve(r)
			if ok != tc.wantOK || id != tc.wantID {
				t.Errorf("Resolve = (%d, %v), want (%d, %v)", id, ok, tc.wantID, tc.wantOK)
			}
		})
	}
}

func TestResolve_NilRequest(t *testing.T) {
	if _, ok := Resolve(nil); ok {
		t.Error("Resolve(nil) should report no tenant")
	}
}

package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                               "/",
		"/metrics":                       "/metrics",
		"/v1/projects/abc":               "/v1/projects/:id",
		"/v1/projects/abc/stats":         "/v1/projects/:id/stats",
		"/v1/projects/stats":             "/v1/projects/stats",
		"/v1/resources/budget/b7":        "/v1/resources/budget/:id",
		"/v1/projects/abc?fields=status": "/v1/projects/:id",
		"/v1/auth/login":                 "/v1/auth/login",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

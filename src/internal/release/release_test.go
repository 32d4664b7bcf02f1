package release

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckReportsNewerVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Manifest{
			Channel: "stable",
			Version: "9.9.9",
			Artifacts: map[string]string{
				"linux/amd64": "https://example.invalid/pybun-9.9.9-linux-amd64",
			},
		})
	}))
	defer srv.Close()

	m, available, err := Check(srv.URL, "stable")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !available {
		t.Fatalf("available = false, want true for version %q vs current %q", m.Version, CurrentVersion)
	}
	if m.Channel != "stable" {
		t.Fatalf("Channel = %q, want stable", m.Channel)
	}
}

func TestCheckReportsUpToDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Manifest{Channel: "stable", Version: CurrentVersion})
	}))
	defer srv.Close()

	_, available, err := Check(srv.URL, "stable")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if available {
		t.Fatalf("available = true, want false when manifest version matches current")
	}
}

func TestCheckPropagatesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, _, err := Check(srv.URL, "stable"); err == nil {
		t.Fatalf("expected an error for a 500 response")
	}
}

package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"voicenote/internal/records"
)

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	oldID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	defer os.Setenv("GOOGLE_SPREADSHEET_ID", oldID)
	os.Unsetenv("GOOGLE_SPREADSHEET_ID")

	_, err := NewFromEnv(context.Background())
	if !errors.Is(err, records.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet-id"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func newFakeSheets(t *testing.T, h http.HandlerFunc) *gsheet.Service {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("sheets service: %v", err)
	}
	return svc
}

func TestCreateEntry(t *testing.T) {
	var body struct {
		Values [][]any `json:"values"`
	}
	var gotPath string
	svc := newFakeSheets(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Query().Get("valueInputOption") != "USER_ENTERED" {
			t.Errorf("valueInputOption = %q", r.URL.Query().Get("valueInputOption"))
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-id","updates":{"updatedRange":"'2025 Voice Notes'!A7:F7"}}`))
	})
	c := NewWithService(svc, "sheet-id", "%d Voice Notes")

	amount := 5000.0
	ref, err := c.CreateEntry(context.Background(), records.Entry{
		Title:       "Voice Note - June 1, 2025",
		Description: "Electric bill",
		Amount:      &amount,
		Category:    "Utilities",
		Date:        time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC),
		Note:        "full note",
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if ref != "'2025 Voice Notes'!A7:F7" {
		t.Fatalf("ref = %q", ref)
	}
	if !strings.Contains(gotPath, "sheet-id") || !strings.HasSuffix(gotPath, ":append") {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if len(body.Values) != 1 || len(body.Values[0]) != len(Columns) {
		t.Fatalf("unexpected row %v", body.Values)
	}
	row := body.Values[0]
	if row[0] != "2025-06-01 10:30:00" || row[2] != "Electric bill" || row[3] != float64(5000) || row[4] != "Utilities" {
		t.Fatalf("unexpected row %v", row)
	}
}

func TestCreateEntryNilAmountAndErrors(t *testing.T) {
	status := http.StatusOK
	svc := newFakeSheets(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Values) == 1 && body.Values[0][3] != "" {
			t.Errorf("nil amount should be an empty cell, got %v", body.Values[0][3])
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"Notes!A2:F2"}}`))
	})
	c := NewWithService(svc, "sheet-id", "Notes")
	entry := records.Entry{Title: "t", Category: "Other", Date: time.Now()}

	if _, err := c.CreateEntry(context.Background(), entry); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	status = http.StatusForbidden
	if _, err := c.CreateEntry(context.Background(), entry); err == nil {
		t.Fatal("expected error on 403")
	}

	if _, err := c.CreateEntry(context.Background(), records.Entry{Date: time.Now()}); !errors.Is(err, records.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}

	unconfigured := NewWithService(svc, "", "Notes")
	if _, err := unconfigured.CreateEntry(context.Background(), entry); !errors.Is(err, records.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSheetNaming(t *testing.T) {
	c := NewWithService(nil, "id", "")
	if c.sheetName != DefaultSheetName {
		t.Fatalf("default sheet = %q", c.sheetName)
	}
	c = NewWithService(nil, "id", "%d Notes")
	if got := c.sheetFor(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)); got != "2024 Notes" {
		t.Fatalf("sheetFor = %q", got)
	}
	cases := map[string]string{
		"Notes":       "Notes",
		"2024 Notes":  "'2024 Notes'",
		"Bob's Notes": "'Bob''s Notes'",
	}
	for in, want := range cases {
		if got := quoteSheet(in); got != want {
			t.Fatalf("quoteSheet(%q) = %q, want %q", in, got, want)
		}
	}
}

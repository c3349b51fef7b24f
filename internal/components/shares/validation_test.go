package shares_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/shares"
)

func TestCreateParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		params shares.CreateParams
		fields []string
	}{
		{"valid", shares.CreateParams{Size: 10, ExpiryHours: 72}, nil},
		{"defaults apply", shares.CreateParams{Size: 10}, nil},
		{"empty file", shares.CreateParams{Size: 0}, []string{"file"}},
		{"too large", shares.CreateParams{Size: 101}, []string{"file"}},
		{"bad expiry", shares.CreateParams{Size: 1, ExpiryHours: 48}, []string{"expiry_hours"}},
		{"negative max", shares.CreateParams{Size: 1, MaxDownloads: -1}, []string{"max_downloads"}},
		{"long description", shares.CreateParams{Size: 1, Description: strings.Repeat("é", 2001)}, []string{"description"}},
		{"several", shares.CreateParams{Size: 0, ExpiryHours: 2, MaxDownloads: -3}, []string{"file", "expiry_hours", "max_downloads"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.params
			p.ApplyDefaults()
			err := p.Validate(100)
			if tt.fields == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *shares.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if len(verr.Fields) != len(tt.fields) {
				t.Fatalf("fields = %+v, want %v", verr.Fields, tt.fields)
			}
			for i, f := range tt.fields {
				if verr.Fields[i].Field != f {
					t.Errorf("field[%d] = %q, want %q", i, verr.Fields[i].Field, f)
				}
			}
		})
	}
}

func TestCreateParams_ApplyDefaults(t *testing.T) {
	p := shares.CreateParams{}
	p.ApplyDefaults()
	if p.ExpiryHours != shares.DefaultExpiryHours {
		t.Errorf("ExpiryHours = %d", p.ExpiryHours)
	}
	if p.ContentType != "application/octet-stream" {
		t.Errorf("ContentType = %q", p.ContentType)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"my report (final).pdf", "my_report_final.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\bob\notes.txt`, "notes.txt"},
		{"résumé.docx", "résumé.docx"},
		{"...", "file"},
		{"", "file"},
		{"$%^&", "file"},
		{strings.Repeat("a", 150) + ".tar", strings.Repeat("a", 96) + ".tar"},
	}
	for _, tt := range tests {
		if got := shares.SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayFilename(t *testing.T) {
	key := "uploads/2026/01/02/0192e5f4-1c1a-7b3e-9f00-6b2f5e1d9a01-report.pdf"
	tests := []struct {
		in, want string
	}{
		{"Quarterly Report.pdf", "Quarterly Report.pdf"},
		{"dir/inner.txt", "inner.txt"},
		{"tab\there.txt", "tabhere.txt"},
		{"", "report.pdf"},
		{strings.Repeat("x", 300), strings.Repeat("x", 255)},
	}
	for _, tt := range tests {
		if got := shares.DisplayFilename(tt.in, key); got != tt.want {
			t.Errorf("DisplayFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStorageKey(t *testing.T) {
	now := time.Date(2026, 1, 2, 23, 30, 0, 0, time.FixedZone("X", 3*3600))
	key := shares.StorageKey(now, "my file.pdf")

	if !strings.HasPrefix(key, "uploads/2026/01/02/") {
		t.Errorf("key %q lacks UTC date prefix", key)
	}
	if !strings.HasSuffix(key, "-my_file.pdf") {
		t.Errorf("key %q lacks sanitized name", key)
	}
	if other := shares.StorageKey(now, "my file.pdf"); other == key {
		t.Error("storage keys should be randomized")
	}
}

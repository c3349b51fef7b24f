package shares

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxFilenameRunes    = 255
	maxStoredNameRunes  = 100
	maxDescriptionRunes = 2000
)

// CreateParams are the owner-supplied fields of a new share.
type CreateParams struct {
	Filename     string
	ContentType  string
	Size         int64
	Description  string
	ExpiryHours  int
	MaxDownloads int
}

// ApplyDefaults fills the expiry when unset.
func (p *CreateParams) ApplyDefaults() {
	if p.ExpiryHours == 0 {
		p.ExpiryHours = DefaultExpiryHours
	}
	if p.ContentType == "" {
		p.ContentType = "application/octet-stream"
	}
}

// Validate returns a *ValidationError listing every bad field.
func (p *CreateParams) Validate(maxBytes int64) error {
	var fields []FieldError

	switch {
	case p.Size <= 0:
		fields = append(fields, FieldError{"file", ReasonMissing, "the submitted file is empty"})
	case maxBytes > 0 && p.Size > maxBytes:
		fields = append(fields, FieldError{"file", ReasonInvalid, fmt.Sprintf("file is larger than %d bytes", maxBytes)})
	}

	if !ValidExpiryHours(p.ExpiryHours) {
		fields = append(fields, FieldError{"expiry_hours", ReasonInvalid, fmt.Sprintf("must be one of %v", AllowedExpiryHours)})
	}

	if p.MaxDownloads < 0 {
		fields = append(fields, FieldError{"max_downloads", ReasonInvalid, "must be 0 (unlimited) or greater"})
	}

	if utf8.RuneCountInString(p.Description) > maxDescriptionRunes {
		fields = append(fields, FieldError{"description", ReasonInvalid, fmt.Sprintf("at most %d characters", maxDescriptionRunes)})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// SanitizeFilename reduces a client filename to a safe storage name:
// base name only, spaces to underscores, and only letters, digits, '-', '_'
// and '.' kept. The extension survives truncation.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")

	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	clean := strings.Trim(b.String(), ".")
	if clean == "" {
		return "file"
	}

	if utf8.RuneCountInString(clean) > maxStoredNameRunes {
		ext := path.Ext(clean)
		if utf8.RuneCountInString(ext) > 16 {
			ext = ""
		}
		stem := []rune(strings.TrimSuffix(clean, ext))
		clean = string(stem[:maxStoredNameRunes-utf8.RuneCountInString(ext)]) + ext
	}
	return clean
}

// DisplayFilename trims a client filename for storage in the record. An
// empty name falls back to the sanitized storage name.
func DisplayFilename(name, storageKey string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	if name == "" || name == "." || name == "/" {
		base := path.Base(storageKey)
		// strip the uuid prefix added by StorageKey
		if len(base) > 37 && base[36] == '-' {
			return base[37:]
		}
		return base
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	if utf8.RuneCountInString(name) > maxFilenameRunes {
		name = string([]rune(name)[:maxFilenameRunes])
	}
	return name
}

// StorageKey builds the blob key for an upload:
// uploads/YYYY/MM/DD/<uuid>-<sanitized name>.
func StorageKey(now time.Time, filename string) string {
	return fmt.Sprintf("uploads/%s/%s-%s", now.UTC().Format("2006/01/02"), uuid.NewString(), SanitizeFilename(filename))
}

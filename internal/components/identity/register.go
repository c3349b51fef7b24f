package identity

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxUsernameLen = 150
	minPasswordLen = 8
)

// FieldError describes one rejected registration field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is returned by Register for malformed input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid registration: " + strings.Join(parts, "; ")
}

// Registration is the input to Register.
type Registration struct {
	Username        string
	Password        string
	PasswordConfirm string
	Email           string
	DisplayName     string
}

func validUsernameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r)
}

func validEmail(email string) bool {
	local, domain, ok := strings.Cut(email, "@")
	return ok && local != "" && domain != "" && !strings.ContainsAny(email, " \t<>") && !strings.Contains(domain, "@")
}

// Validate checks the registration fields.
func (in Registration) Validate() error {
	var fields []FieldError

	switch n := utf8.RuneCountInString(in.Username); {
	case n == 0:
		fields = append(fields, FieldError{"username", "required"})
	case n > maxUsernameLen:
		fields = append(fields, FieldError{"username", fmt.Sprintf("at most %d characters", maxUsernameLen)})
	case strings.IndexFunc(in.Username, func(r rune) bool { return !validUsernameRune(r) }) >= 0:
		fields = append(fields, FieldError{"username", "letters, digits and @.+-_ only"})
	}

	switch email := strings.TrimSpace(in.Email); {
	case email == "":
		fields = append(fields, FieldError{"email", "required"})
	case !validEmail(email):
		fields = append(fields, FieldError{"email", "not a valid address"})
	}

	switch {
	case utf8.RuneCountInString(in.Password) < minPasswordLen:
		fields = append(fields, FieldError{"password", fmt.Sprintf("at least %d characters", minPasswordLen)})
	case strings.EqualFold(in.Password, in.Username):
		fields = append(fields, FieldError{"password", "too similar to the username"})
	case in.Password != in.PasswordConfirm:
		fields = append(fields, FieldError{"password_confirm", "passwords do not match"})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Register validates the input, hashes the password and stores a new user
// with RoleUser.
func (a *UserAuth) Register(ctx context.Context, repo PartyRepo, in Registration) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hash, err := a.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	display := in.DisplayName
	if display == "" {
		display = in.Username
	}
	user := &User{
		Username:     in.Username,
		Email:        strings.TrimSpace(in.Email),
		DisplayName:  display,
		PasswordHash: hash,
		Role:         RoleUser,
	}
	if err := repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

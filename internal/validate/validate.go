// Package validate sanitizes free-text input and turns create requests into
// validated drafts. Everything here is pure; nothing touches storage.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/PratikDhanave/empleaido-factory/internal/models"
)

// Field limits.
const (
	MaxNameLength      = 50
	MaxRoleLength      = 100
	MaxSpecialtyLength = 200
	MaxTagLength       = 50
	MaxSefirot         = 10
	MaxSkills          = 20
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	namePattern  = regexp.MustCompile(`^[A-Za-z0-9_\s-]+$`)
	skillPattern = regexp.MustCompile(`^[A-Za-z0-9_\s+-]+$`)
	idPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)
)

// Error describes why a create request was rejected.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// SanitizeText strips NUL bytes and control characters (newline and tab survive),
// truncates to maxLength runes and trims surrounding whitespace.
func SanitizeText(input string, maxLength int) string {
	if input == "" || maxLength <= 0 {
		return ""
	}
	input = strings.ReplaceAll(input, "\x00", "")
	if utf8.RuneCountInString(input) > maxLength {
		input = string([]rune(input)[:maxLength])
	}
	input = controlChars.ReplaceAllString(input, "")
	return strings.TrimSpace(input)
}

// ValidateEnumSet keeps the sanitized candidates that belong to whitelist,
// dropping duplicates. First-seen order is kept.
func ValidateEnumSet(values, whitelist []string) []string {
	allowed := make(map[string]struct{}, len(whitelist))
	for _, w := range whitelist {
		allowed[w] = struct{}{}
	}
	return dedupe(values, func(v string) bool {
		_, ok := allowed[v]
		return ok
	})
}

// ValidateSkillTags keeps sanitized tags of at least two characters made of
// letters, digits, underscore, whitespace, hyphen and plus.
func ValidateSkillTags(values []string) []string {
	return dedupe(values, func(v string) bool {
		return utf8.RuneCountInString(v) >= 2 && skillPattern.MatchString(v)
	})
}

func dedupe(values []string, keep func(string) bool) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, raw := range values {
		v := SanitizeText(strings.TrimSpace(raw), MaxTagLength)
		if v == "" || !keep(v) {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ValidID reports whether id matches the strict record identifier pattern.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

type draftRules struct {
	Name      string   `json:"name" validate:"min=2,max=50,namechars"`
	Role      string   `json:"role" validate:"min=2,max=100"`
	Specialty string   `json:"specialty" validate:"min=2,max=200"`
	Sefirot   []string `json:"sefirot_activation" validate:"min=1,max=10"`
	Skills    []string `json:"skills" validate:"min=1,max=20"`
}

var rules = newRules()

func newRules() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("namechars", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Draft sanitizes req and checks it against the record rules. The returned
// error is a *Error whenever the input itself is at fault.
func Draft(req models.CreateEmpleaidoRequest) (models.Draft, error) {
	r := draftRules{
		Name:      sanitizeFull(req.Name),
		Role:      sanitizeFull(req.Role),
		Specialty: sanitizeFull(req.Specialty),
		Sefirot:   req.SefirotActivation,
		Skills:    req.Skills,
	}
	if err := rules.Struct(r); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return models.Draft{}, fieldError(ve[0])
		}
		return models.Draft{}, err
	}

	sefirot := ValidateEnumSet(req.SefirotActivation, models.Sefirot)
	if len(sefirot) == 0 {
		return models.Draft{}, &Error{Field: "sefirot_activation", Reason: "no valid Sefirot names provided"}
	}
	skills := ValidateSkillTags(req.Skills)
	if len(skills) == 0 {
		return models.Draft{}, &Error{Field: "skills", Reason: "no valid skills provided"}
	}

	return models.Draft{
		Name:              r.Name,
		Role:              r.Role,
		Specialty:         r.Specialty,
		SefirotActivation: sefirot,
		Skills:            skills,
	}, nil
}

// sanitizeFull cleans s without truncating, so oversized input is rejected
// by the length rules instead of being cut silently.
func sanitizeFull(s string) string {
	return SanitizeText(s, utf8.RuneCountInString(s))
}

func fieldError(fe validator.FieldError) *Error {
	unit := "characters"
	if fe.Kind() == reflect.Slice {
		unit = "items"
	}
	switch fe.Tag() {
	case "min":
		return &Error{Field: fe.Field(), Reason: fmt.Sprintf("must have at least %s %s", fe.Param(), unit)}
	case "max":
		return &Error{Field: fe.Field(), Reason: fmt.Sprintf("must have at most %s %s", fe.Param(), unit)}
	case "namechars":
		return &Error{Field: fe.Field(), Reason: "may only contain letters, digits, spaces, underscores and hyphens"}
	default:
		return &Error{Field: fe.Field(), Reason: "is invalid"}
	}
}

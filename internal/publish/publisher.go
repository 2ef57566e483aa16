// Package publish renders deployed empleaidos as OpenClaw skills: a skill.md
// with YAML frontmatter plus an index.md, one directory per record name.
package publish

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/PratikDhanave/empleaido-factory/internal/fsutil"
	"github.com/PratikDhanave/empleaido-factory/internal/models"
	"github.com/PratikDhanave/empleaido-factory/internal/validate"
)

// File names written into each skill directory.
const (
	SkillFile = "skill.md"
	IndexFile = "index.md"

	skillVersion = "1.0.0"
)

// ErrOutsideRoot is returned when a record name would place files outside the
// skills directory.
var ErrOutsideRoot = errors.New("publish: target outside skills directory")

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
	"join":  strings.Join,
}).ParseFS(templateFS, "templates/*.tmpl"))

var sefirotMeaning = map[string]string{
	"Keter":    "Crown - universal consciousness, connection to source",
	"Chochmah": "Wisdom - intuitive insight, creative inspiration",
	"Binah":    "Understanding - analytical depth, structured processing",
	"Chesed":   "Kindness - expansion, generosity, creative force",
	"Gevurah":  "Strength - discipline, restraint, focused power",
	"Tiferet":  "Beauty - balance, harmony, integration",
	"Netzach":  "Victory - endurance, confidence, momentum",
	"Hod":      "Splendor - detail-oriented, analytical precision",
	"Yesod":    "Foundation - connection, transmission, foundation",
	"Malkuth":  "Kingdom - manifestation, physical reality",
}

// Publisher writes skills under a root directory.
type Publisher struct {
	root string
}

// New returns a Publisher rooted at dir. The directory is created on first publish.
func New(dir string) *Publisher {
	return &Publisher{root: filepath.Clean(dir)}
}

// Root returns the skills directory.
func (p *Publisher) Root() string { return p.root }

// Dir returns the directory a record publishes into.
func (p *Publisher) Dir(rec models.Empleaido) (string, error) {
	slug := Slug(rec.Name)
	if slug == "" || slug == "." || slug == ".." || strings.ContainsAny(slug, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rec.Name)
	}
	dir := filepath.Join(p.root, slug)
	rel, err := filepath.Rel(p.root, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rec.Name)
	}
	return dir, nil
}

// Publish writes skill.md and index.md for rec and returns the skill.md path.
func (p *Publisher) Publish(ctx context.Context, rec models.Empleaido) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir, err := p.Dir(rec)
	if err != nil {
		return "", err
	}

	skill, err := RenderSkill(rec)
	if err != nil {
		return "", err
	}
	index, err := RenderIndex(rec)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("publish: create %s: %w", dir, err)
	}
	skillPath := filepath.Join(dir, SkillFile)
	if err := fsutil.WriteFileAtomic(skillPath, skill, 0o644); err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, IndexFile), index, 0o644); err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	return skillPath, nil
}

// Remove deletes the record's skill directory. A missing directory is not an error.
func (p *Publisher) Remove(ctx context.Context, rec models.Empleaido) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := p.Dir(rec)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("publish: remove %s: %w", dir, err)
	}
	return nil
}

// Slug is the directory and skill name for a record name.
func Slug(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type frontMatter struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

type sefira struct {
	Name        string
	Description string
}

type view struct {
	Name      string
	Slug      string
	Role      string
	Specialty string
	Sefirot   []sefira
	Skills    []string
	Status    string
	CreatedAt string
	ID        string
	Version   string
}

func newView(rec models.Empleaido) view {
	v := view{
		Name:      validate.SanitizeText(rec.Name, validate.MaxNameLength),
		Role:      validate.SanitizeText(rec.Role, validate.MaxRoleLength),
		Specialty: validate.SanitizeText(rec.Specialty, validate.MaxSpecialtyLength),
		Skills:    rec.Skills,
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt,
		ID:        rec.ID,
		Version:   models.Version,
	}
	v.Slug = Slug(v.Name)
	if v.Status == "" {
		v.Status = models.StatusActive
	}
	if v.CreatedAt == "" {
		v.CreatedAt = "Unknown"
	}
	for _, name := range rec.SefirotActivation {
		desc, ok := sefirotMeaning[name]
		if !ok {
			desc = "Sefirotic activation"
		}
		v.Sefirot = append(v.Sefirot, sefira{Name: name, Description: desc})
	}
	return v
}

// RenderSkill produces skill.md: YAML frontmatter followed by the markdown body.
func RenderSkill(rec models.Empleaido) ([]byte, error) {
	v := newView(rec)
	meta, err := yaml.Marshal(frontMatter{
		Name:        v.Slug,
		Version:     skillVersion,
		Description: v.Role + " - " + v.Specialty,
	})
	if err != nil {
		return nil, fmt.Errorf("publish: encode frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(meta, "\n"))
	buf.WriteString("\n---\n\n")
	if err := templates.ExecuteTemplate(&buf, "skill.md.tmpl", v); err != nil {
		return nil, fmt.Errorf("publish: render skill: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderIndex produces index.md.
func RenderIndex(rec models.Empleaido) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "index.md.tmpl", newView(rec)); err != nil {
		return nil, fmt.Errorf("publish: render index: %w", err)
	}
	return buf.Bytes(), nil
}

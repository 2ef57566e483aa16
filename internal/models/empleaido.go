package models

// Version is the service version reported by health checks and stamped on
// published skills.
const Version = "2.1.0"

// Record statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Sefirot is the fixed whitelist of activation tags a record may carry.
var Sefirot = []string{
	"Keter", "Chochmah", "Binah", "Chesed", "Gevurah",
	"Tiferet", "Netzach", "Hod", "Yesod", "Malkuth",
}

// Empleaido is a persisted agent definition.
// It is only mutated by deploy (Deployed=true); other fields never change after creation.
type Empleaido struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Role              string   `json:"role"`
	Specialty         string   `json:"specialty"`
	SefirotActivation []string `json:"sefirot_activation"`
	Skills            []string `json:"skills"`
	Status            string   `json:"status"`
	CreatedAt         string   `json:"created_at"`
	Deployed          bool     `json:"deployed"`
}

// CreateEmpleaidoRequest is the POST /api/records payload before validation.
type CreateEmpleaidoRequest struct {
	Name              string   `json:"name"`
	Role              string   `json:"role"`
	Specialty         string   `json:"specialty"`
	SefirotActivation []string `json:"sefirot_activation"`
	Skills            []string `json:"skills"`
}

// Draft is a sanitized, validated create request.
type Draft struct {
	Name              string
	Role              string
	Specialty         string
	SefirotActivation []string
	Skills            []string
}

// DeployResponse is returned by POST /api/records/{id}/deploy.
type DeployResponse struct {
	Message   string    `json:"message"`
	SkillPath string    `json:"skill_path"`
	Empleaido Empleaido `json:"empleaido"`
}

// LoginResponse is returned by POST /api/auth/login.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// Clone returns a copy that shares no slices with e. List fields always come
// back non-nil so they encode as [] rather than null.
func (e Empleaido) Clone() Empleaido {
	e.SefirotActivation = copyStrings(e.SefirotActivation)
	e.Skills = copyStrings(e.Skills)
	return e
}

func copyStrings(v []string) []string {
	out := make([]string, len(v))
	copy(out, v)
	return out
}

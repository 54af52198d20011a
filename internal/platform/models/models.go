package models

type Tenant struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	PlanTier  string `json:"plan_tier"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

type User struct {
	ID           string `json:"id"`
	TenantID     string `json:"tenant_id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	FullName     string `json:"full_name"`
	Role         string `json:"role"`
	LastLoginAt  *int64 `json:"last_login_at,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`

	Tenant *Tenant `json:"tenant,omitempty"`
}

// Lead statuses follow the pipeline order; inbound ingestion always starts a
// lead at NEW.
const (
	LeadStatusNew       = "NEW"
	LeadStatusContacted = "CONTACTED"
	LeadStatusQualified = "QUALIFIED"
	LeadStatusConverted = "CONVERTED"
	LeadStatusLost      = "LOST"
)

type Lead struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Company     string `json:"company,omitempty"`
	Source      string `json:"source,omitempty"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	CreatedByID string `json:"created_by_id,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

type Contact struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Company     string `json:"company,omitempty"`
	Phone       string `json:"phone,omitempty"`
	CreatedByID string `json:"created_by_id,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

type ActivityLog struct {
	ID         string                 `json:"id"`
	TenantID   string                 `json:"tenant_id"`
	UserID     string                 `json:"user_id,omitempty"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  int64                  `json:"created_at"`
}

package domain

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusBlocked    Status = "BLOCKED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

type BlockerSeverity string

const (
	SeverityLow      BlockerSeverity = "LOW"
	SeverityMedium   BlockerSeverity = "MEDIUM"
	SeverityHigh     BlockerSeverity = "HIGH"
	SeverityCritical BlockerSeverity = "CRITICAL"
)

func (s BlockerSeverity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type BlockerStatus string

const (
	BlockerOpen       BlockerStatus = "OPEN"
	BlockerInProgress BlockerStatus = "IN_PROGRESS"
	BlockerResolved   BlockerStatus = "RESOLVED"
	BlockerClosed     BlockerStatus = "CLOSED"
)

func (s BlockerStatus) Valid() bool {
	switch s {
	case BlockerOpen, BlockerInProgress, BlockerResolved, BlockerClosed:
		return true
	}
	return false
}

// ClampScore bounds health scores and progress to [0,100].
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name,omitempty"`
	HashedPassword string `json:"-"`
	Role           Role   `json:"role" enum:"ADMIN,MEMBER"`
	Active         bool   `json:"active"`
	CreatedAt      string `json:"created_at" format:"date-time"`
	UpdatedAt      string `json:"updated_at" format:"date-time"`
}

type Objective struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority" enum:"HIGH,MEDIUM,LOW"`
	Status      Status   `json:"status" enum:"NOT_STARTED,IN_PROGRESS,COMPLETED,BLOCKED"`
	HealthScore int      `json:"health_score"`
	Progress    int      `json:"progress"`
	TargetDate  *string  `json:"target_date,omitempty" format:"date-time"`
	CreatedBy   string   `json:"created_by"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

type Assignment struct {
	ObjectiveID string `json:"objective_id"`
	UserID      string `json:"user_id"`
	AssignedAt  string `json:"assigned_at" format:"date-time"`
}

type PulseRequest struct {
	ID          string  `json:"id"`
	ObjectiveID string  `json:"objective_id"`
	Question    string  `json:"question"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

type PulseResponse struct {
	ID             string `json:"id"`
	PulseRequestID string `json:"pulse_request_id"`
	ObjectiveID    string `json:"objective_id"`
	UserID         string `json:"user_id"`
	Rating         int    `json:"rating" minimum:"1" maximum:"5"`
	Feedback       string `json:"feedback,omitempty"`
	CreatedAt      string `json:"created_at" format:"date-time"`
	UpdatedAt      string `json:"updated_at" format:"date-time"`
}

type Blocker struct {
	ID          string          `json:"id"`
	ObjectiveID string          `json:"objective_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Severity    BlockerSeverity `json:"severity" enum:"LOW,MEDIUM,HIGH,CRITICAL"`
	Status      BlockerStatus   `json:"status" enum:"OPEN,IN_PROGRESS,RESOLVED,CLOSED"`
	ReportedBy  string          `json:"reported_by"`
	ResolvedAt  *string         `json:"resolved_at,omitempty" format:"date-time"`
	CreatedAt   string          `json:"created_at" format:"date-time"`
	UpdatedAt   string          `json:"updated_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

package acruxsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Acrux HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// User represents an account.
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

// Objective represents a tracked goal.
type Objective struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	HealthScore int     `json:"health_score"`
	Progress    int     `json:"progress"`
	TargetDate  *string `json:"target_date,omitempty"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// Assignment links a user to an objective.
type Assignment struct {
	ObjectiveID string `json:"objective_id"`
	UserID      string `json:"user_id"`
	AssignedAt  string `json:"assigned_at"`
}

// ObjectiveDetail is an objective with its assignment set.
type ObjectiveDetail struct {
	Objective
	Assignments []Assignment `json:"assignments"`
}

// PulseRequest is an open pulse check.
type PulseRequest struct {
	ID          string  `json:"id"`
	ObjectiveID string  `json:"objective_id"`
	Question    string  `json:"question"`
	DueDate     *string `json:"due_date,omitempty"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at"`
}

// PulseResponse is a recorded rating.
type PulseResponse struct {
	ID             string `json:"id"`
	PulseRequestID string `json:"pulse_request_id"`
	ObjectiveID    string `json:"objective_id"`
	UserID         string `json:"user_id"`
	Rating         int    `json:"rating"`
	Feedback       string `json:"feedback,omitempty"`
}

// Blocker is a reported impediment.
type Blocker struct {
	ID          string  `json:"id"`
	ObjectiveID string  `json:"objective_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Severity    string  `json:"severity"`
	Status      string  `json:"status"`
	ReportedBy  string  `json:"reported_by"`
	ResolvedAt  *string `json:"resolved_at,omitempty"`
}

// DashboardMetrics is the aggregate snapshot.
type DashboardMetrics struct {
	AverageHealthScore  int `json:"average_health_score"`
	TotalObjectives     int `json:"total_objectives"`
	CompletedObjectives int `json:"completed_objectives"`
	BlockedObjectives   int `json:"blocked_objectives"`
	ActivePulseRequests int `json:"active_pulse_requests"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

type loginData struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login authenticates and stores the bearer token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var data loginData
	err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, &data)
	if err != nil {
		return User{}, err
	}
	c.BearerToken = data.Token
	return data.User, nil
}

// Signup registers a member account.
func (c *Client) Signup(ctx context.Context, email, name, password string) (User, error) {
	var u User
	err := c.do(ctx, http.MethodPost, "auth/signup", map[string]any{
		"email":    email,
		"name":     name,
		"password": password,
	}, &u)
	return u, err
}

// Metrics returns the caller's dashboard metrics.
func (c *Client) Metrics(ctx context.Context) (DashboardMetrics, error) {
	var m DashboardMetrics
	err := c.do(ctx, http.MethodGet, "dashboard/metrics", nil, &m)
	return m, err
}

// Objectives lists all objectives (admin only).
func (c *Client) Objectives(ctx context.Context) ([]Objective, error) {
	var items []Objective
	err := c.do(ctx, http.MethodGet, "objectives", nil, &items)
	return items, err
}

// MyObjectives lists the caller's assigned objectives.
func (c *Client) MyObjectives(ctx context.Context) ([]Objective, error) {
	var items []Objective
	err := c.do(ctx, http.MethodGet, "objectives/my", nil, &items)
	return items, err
}

// Objective fetches one objective with assignments.
func (c *Client) Objective(ctx context.Context, id string) (ObjectiveDetail, error) {
	var detail ObjectiveDetail
	err := c.do(ctx, http.MethodGet, "objectives/"+url.PathEscape(id), nil, &detail)
	return detail, err
}

// CreateObjective creates an objective (admin only).
func (c *Client) CreateObjective(ctx context.Context, title string, assignedUserIDs []string) (ObjectiveDetail, error) {
	body := map[string]any{"title": title}
	if len(assignedUserIDs) > 0 {
		body["assigned_user_ids"] = assignedUserIDs
	}
	var detail ObjectiveDetail
	err := c.do(ctx, http.MethodPost, "objectives", body, &detail)
	return detail, err
}

// PendingPulseRequests lists the caller's unanswered pulse checks.
func (c *Client) PendingPulseRequests(ctx context.Context) ([]PulseRequest, error) {
	var items []PulseRequest
	err := c.do(ctx, http.MethodGet, "pulse/pending", nil, &items)
	return items, err
}

// SubmitPulseResponse records a 1-5 rating for a pulse request.
func (c *Client) SubmitPulseResponse(ctx context.Context, pulseRequestID string, rating int, feedback string) (PulseResponse, error) {
	body := map[string]any{
		"pulse_request_id": pulseRequestID,
		"rating":           rating,
	}
	if feedback != "" {
		body["feedback"] = feedback
	}
	var resp PulseResponse
	err := c.do(ctx, http.MethodPost, "pulse/responses", body, &resp)
	return resp, err
}

// ReportBlocker files a blocker against an objective.
func (c *Client) ReportBlocker(ctx context.Context, objectiveID, title, severity string) (Blocker, error) {
	body := map[string]any{
		"objective_id": objectiveID,
		"title":        title,
	}
	if severity != "" {
		body["severity"] = severity
	}
	var b Blocker
	err := c.do(ctx, http.MethodPost, "blockers", body, &b)
	return b, err
}

// Blockers lists blockers visible to the caller.
func (c *Client) Blockers(ctx context.Context) ([]Blocker, error) {
	var items []Blocker
	err := c.do(ctx, http.MethodGet, "blockers", nil, &items)
	return items, err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
		}
		return err
	}
	if resp.StatusCode >= 300 || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

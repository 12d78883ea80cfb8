package server

import (
	"github.com/Foxnet360/acrux.life/internal/domain"
)

// SuccessBody is the uniform success envelope.
type SuccessBody[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message"`
}

// Response wraps a success payload for huma.
type Response[T any] struct {
	Status int `json:"-"`
	Body   SuccessBody[T]
}

func success[T any](data T, message string) *Response[T] {
	return &Response[T]{Body: SuccessBody[T]{Success: true, Data: data, Message: message}}
}

func created[T any](data T, message string) *Response[T] {
	r := success(data, message)
	r.Status = 201
	return r
}

// Request payloads

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginData struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type SignupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

type CreateObjectiveRequest struct {
	Title           string   `json:"title"`
	Description     *string  `json:"description,omitempty"`
	Priority        *string  `json:"priority,omitempty" enum:"HIGH,MEDIUM,LOW"`
	TargetDate      *string  `json:"target_date,omitempty" format:"date-time"`
	AssignedUserIDs []string `json:"assigned_user_ids,omitempty"`
}

type UpdateObjectiveRequest struct {
	Title           *string  `json:"title,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Priority        *string  `json:"priority,omitempty" enum:"HIGH,MEDIUM,LOW"`
	Status          *string  `json:"status,omitempty" enum:"NOT_STARTED,IN_PROGRESS,COMPLETED,BLOCKED"`
	Progress        *int     `json:"progress,omitempty" minimum:"0" maximum:"100"`
	TargetDate      *string  `json:"target_date,omitempty"`
	AssignedUserIDs []string `json:"assigned_user_ids,omitempty"`
}

type ReplaceAssignmentsRequest struct {
	UserIDs []string `json:"user_ids"`
}

type CreatePulseRequestRequest struct {
	ObjectiveID string  `json:"objective_id"`
	Question    *string `json:"question,omitempty"`
	ExpiresAt   *string `json:"expires_at,omitempty" format:"date-time"`
}

type SubmitPulseResponseRequest struct {
	PulseRequestID string  `json:"pulse_request_id"`
	Rating         int     `json:"rating" minimum:"1" maximum:"5"`
	Feedback       *string `json:"feedback,omitempty"`
}

type CreateBlockerRequest struct {
	ObjectiveID string  `json:"objective_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Severity    *string `json:"severity,omitempty" enum:"LOW,MEDIUM,HIGH,CRITICAL"`
}

type UpdateBlockerRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Severity    *string `json:"severity,omitempty" enum:"LOW,MEDIUM,HIGH,CRITICAL"`
	Status      *string `json:"status,omitempty" enum:"OPEN,IN_PROGRESS,RESOLVED,CLOSED"`
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

package api

import (
	domain "github.com/khalidAdell/quick-task/domain/task"
)

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ProfileRequest updates the caller's display fields.
type ProfileRequest struct {
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// TaskRequest is the body of a task post. Deadline accepts a date
// (2006-01-02) or an RFC 3339 timestamp.
type TaskRequest struct {
	Title        string   `json:"title"`
	Category     string   `json:"category"`
	Description  string   `json:"description"`
	Price        float64  `json:"price"`
	Deadline     string   `json:"deadline"`
	Requirements []string `json:"requirements"`
}

// TaskPatchRequest is the body of a task edit. Absent fields stay unchanged.
type TaskPatchRequest struct {
	Title        *string  `json:"title"`
	Category     *string  `json:"category"`
	Description  *string  `json:"description"`
	Price        *float64 `json:"price"`
	Deadline     *string  `json:"deadline"`
	Requirements []string `json:"requirements"`
}

// BidRequest is the body of a bid submission or edit.
type BidRequest struct {
	Amount  float64 `json:"amount"`
	Message string  `json:"message"`
}

// TaskListResponse is a page of tasks.
type TaskListResponse struct {
	Tasks  []*domain.Task `json:"tasks"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

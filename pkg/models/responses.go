package models

import "time"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Uptime     time.Duration          `json:"uptime"`
	InstanceID string                 `json:"instance_id,omitempty"`
	State      string                 `json:"state,omitempty"`
	Metrics    map[string]interface{} `json:"metrics,omitempty"`
}

// ActionResponse is returned by administrative endpoints
type ActionResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the body of refused requests
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
}

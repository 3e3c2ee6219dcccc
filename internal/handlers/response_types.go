package handlers

import (
	"github.com/xpanvictor/aria/internal/domains/listener"
)

// Response wrapper types for Swagger documentation

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Message string `json:"message" example:"Operation completed successfully"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"Something went wrong"`
	Details string `json:"details,omitempty" example:"Validation error details"`
}

// StatusResponse represents the listener status
type StatusResponse struct {
	Status listener.Status `json:"status"`
}

// ListUtterancesResponse represents the response for listing utterances
type ListUtterancesResponse struct {
	Utterances []listener.Record `json:"utterances"`
	Limit      int               `json:"limit" example:"20"`
}

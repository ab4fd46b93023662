package models

import (
	"strings"
	"time"
)

// EndpointClass groups endpoints sharing one limit.
type EndpointClass string

const (
	// ClassContact covers contact form submissions.
	ClassContact EndpointClass = "contact"
)

// Policy is the allowance for one class: Limit requests per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// RateLimitResult is the outcome of a single check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// NewIPKey builds the bucket key for a client IP within a class.
func NewIPKey(class EndpointClass, ip string) string {
	return "ratelimit:" + string(class) + ":ip:" + strings.ReplaceAll(ip, ":", "_")
}

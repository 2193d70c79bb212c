package config

import "time"

// RateLimitPolicy is one token-bucket scope. Max requests refill evenly over
// Window. When SkipSuccesses is set, responses below 400 refund the token
// (used for login and upload scopes where only failures count).
type RateLimitPolicy struct {
	Name          string
	Window        time.Duration
	Max           int
	SkipSuccesses bool
}

// Rate-limit scopes. Keys are client IP except the API-key scope, which
// prefers the X-API-Key header when present.
var (
	RateGeneral = RateLimitPolicy{Name: "general", Window: 15 * time.Minute, Max: 100}
	RateLogin   = RateLimitPolicy{Name: "login", Window: time.Hour, Max: 5, SkipSuccesses: true}
	RateSignup  = RateLimitPolicy{Name: "signup", Window: time.Hour, Max: 3}
	RateUpload  = RateLimitPolicy{Name: "upload", Window: time.Hour, Max: 10, SkipSuccesses: true}
	RateAI      = RateLimitPolicy{Name: "ai", Window: time.Minute, Max: 10}
	RateAPIKey  = RateLimitPolicy{Name: "apikey", Window: time.Hour, Max: 1000}
)

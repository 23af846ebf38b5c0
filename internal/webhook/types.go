package webhook

import "github.com/mattjoyce/relaycmd/internal/registry"

// Executor dispatches a named command. *registry.Registry implements it.
type Executor interface {
	Execute(name string) (*registry.Execution, error)
}

// Config holds webhook server configuration.
type Config struct {
	Listen    string
	Endpoints []EndpointConfig
}

// EndpointConfig is one resolved webhook endpoint.
type EndpointConfig struct {
	Path            string
	Command         string
	Secret          string
	SignatureHeader string
	MaxBodySize     int64
}

// TriggerResponse is the JSON response for accepted triggers.
type TriggerResponse struct {
	ExecutionID string `json:"execution_id"`
	Command     string `json:"command"`
}

// ErrorResponse is the JSON response for webhook errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DefaultMaxBodySize is 1 MB.
const DefaultMaxBodySize = 1048576

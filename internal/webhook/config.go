package webhook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattjoyce/relaycmd/internal/config"
)

// FromGlobalConfig converts config.WebhooksConfig to a server Config,
// parsing body size limits.
func FromGlobalConfig(wc *config.WebhooksConfig) (Config, error) {
	if wc == nil {
		return Config{}, fmt.Errorf("webhooks config is nil")
	}

	cfg := Config{
		Listen:    wc.Listen,
		Endpoints: make([]EndpointConfig, len(wc.Endpoints)),
	}

	for i, ep := range wc.Endpoints {
		if ep.Secret == "" {
			return Config{}, fmt.Errorf("webhook endpoint %q: no secret configured", ep.Path)
		}

		maxBodySize, err := parseMaxBodySize(ep.MaxBodySize)
		if err != nil {
			return Config{}, fmt.Errorf("webhook endpoint %q: invalid max_body_size %q: %w", ep.Path, ep.MaxBodySize, err)
		}

		header := ep.SignatureHeader
		if header == "" {
			header = config.DefaultSignatureHeader
		}

		cfg.Endpoints[i] = EndpointConfig{
			Path:            ep.Path,
			Command:         ep.Command,
			Secret:          ep.Secret,
			SignatureHeader: header,
			MaxBodySize:     maxBodySize,
		}
	}

	return cfg, nil
}

var sizeUnits = []struct {
	suffix     string
	multiplier int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
}

// parseMaxBodySize parses "1MB", "64KB" or a plain byte count. Empty means
// DefaultMaxBodySize.
func parseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)
	for _, u := range sizeUnits {
		if strings.HasSuffix(upper, u.suffix) {
			multiplier = u.multiplier
			upper = strings.TrimSuffix(upper, u.suffix)
			break
		}
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result/multiplier != value {
		return 0, fmt.Errorf("size too large")
	}
	return result, nil
}

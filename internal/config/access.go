package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// GetPath retrieves a value using dot notation ("service.name") or entity
// addressing ("command:save", "command:*").
func (c *Config) GetPath(path string) (any, error) {
	if strings.Contains(path, ":") {
		return c.GetEntity(path)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return getValue(m, path)
}

// GetEntity retrieves a command by "command:name".
func (c *Config) GetEntity(address string) (any, error) {
	parts := strings.SplitN(address, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid entity address format %q (expected type:name)", address)
	}

	entityType, name := parts[0], parts[1]
	switch entityType {
	case "command":
		if name == "*" {
			return c.Commands, nil
		}
		cmd, ok := c.Command(name)
		if !ok {
			return nil, fmt.Errorf("command %q not found", name)
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("unsupported entity type %q", entityType)
	}
}

// Command returns the named command declaration.
func (c *Config) Command(name string) (CommandConfig, bool) {
	for _, cmd := range c.Commands {
		if cmd.Name == name {
			return cmd, true
		}
	}
	return CommandConfig{}, false
}

func getValue(m map[string]any, path string) (any, error) {
	parts := strings.Split(path, ".")
	var current any = m

	for _, part := range parts {
		if part == "" {
			continue
		}

		m, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("path %q breaks at %q (not a map)", path, part)
		}

		val, exists := m[part]
		if !exists {
			return nil, fmt.Errorf("path %q: key %q not found", path, part)
		}
		current = val
	}

	return current, nil
}

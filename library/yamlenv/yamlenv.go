package yamlenv

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Env holds a config value read from yaml, with optional environment
// substitution: `${NAME}` or `${NAME:default}`.
type Env[T any] struct {
	Value T
}

var envPattern = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([^}]*))?\}$`)

func (e *Env[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if m := envPattern.FindStringSubmatch(node.Value); m != nil {
			val, ok := os.LookupEnv(m[1])
			if !ok {
				val = m[2]
			}

			node = &yaml.Node{Kind: yaml.ScalarNode, Value: val}
		}
	}

	return node.Decode(&e.Value)
}

// New wraps a literal value, bypassing yaml. Used in tests and defaults.
func New[T any](v T) *Env[T] {
	return &Env[T]{Value: v}
}

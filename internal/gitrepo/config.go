package gitrepo

import (
	"context"
	"errors"
	"fmt"
)

// ConfigScope selects the git configuration file that is read or written.
type ConfigScope int

const (
	// ConfigScopeLocal is the configuration of the repository.
	ConfigScopeLocal ConfigScope = iota
	// ConfigScopeUser is the global configuration of the current user.
	ConfigScopeUser
	// ConfigScopeGitmodules is the .gitmodules file in the root of the
	// working tree.
	ConfigScopeGitmodules
)

func (s ConfigScope) flags() []string {
	switch s {
	case ConfigScopeUser:
		return []string{"--global"}
	case ConfigScopeGitmodules:
		return []string{"--file", ".gitmodules"}
	default:
		return []string{"--local"}
	}
}

func (s ConfigScope) String() string {
	switch s {
	case ConfigScopeUser:
		return "user"
	case ConfigScopeGitmodules:
		return "gitmodules"
	default:
		return "local"
	}
}

// SetConfig sets the configuration key to value.
func (r *Repo) SetConfig(ctx context.Context, scope ConfigScope, key, value string) error {
	args := append([]string{"config"}, scope.flags()...)
	_, err := r.git.Run(ctx, append(args, key, value)...)
	return err
}

// GetConfig returns the value of key.
// If the key is not set, an error wrapping ErrNotFound is returned.
func (r *Repo) GetConfig(ctx context.Context, scope ConfigScope, key string) (string, error) {
	args := append([]string{"config"}, scope.flags()...)
	res, err := r.git.Run(ctx, append(args, "--get", key)...)
	if err != nil {
		var execErr *ExecError
		if errors.As(err, &execErr) && execErr.Stderr == "" && execErr.Stdout == "" {
			return "", fmt.Errorf("config key %q (%s): %w", key, scope, ErrNotFound)
		}
		return "", err
	}

	// only the trailing newline is removed, the value is returned verbatim
	out := res.Stdout
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}

	return out, nil
}

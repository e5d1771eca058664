package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Secret names shared by the binaries.
const (
	SecretBonzoToken   = "bonzo-token"
	SecretOpenAIAPIKey = "openai-api-key"
)

// Resolver looks secrets up in the environment first and falls back to SSM
// under a parameter prefix. It satisfies Getter, keyed by logical secret name.
type Resolver struct {
	ssm     Getter
	prefix  string
	envVars map[string]string
	getenv  func(string) string

	mu    sync.RWMutex
	cache map[string]string
}

// NewResolver maps logical secret names to environment variables. ssm may be
// nil, in which case only the environment is consulted.
func NewResolver(ssm Getter, prefix string, envVars map[string]string) *Resolver {
	vars := make(map[string]string, len(envVars))
	for k, v := range envVars {
		vars[k] = v
	}
	return &Resolver{
		ssm:     ssm,
		prefix:  strings.TrimRight(strings.TrimSpace(prefix), "/"),
		envVars: vars,
		getenv:  os.Getenv,
		cache:   make(map[string]string),
	}
}

func (r *Resolver) fromEnv(name string) (string, bool) {
	key, ok := r.envVars[name]
	if !ok {
		return "", false
	}
	v := strings.TrimSpace(r.getenv(key))
	return v, v != ""
}

func (r *Resolver) path(name string) string {
	return r.prefix + "/" + name
}

// GetParameter returns the value of the logical secret name.
func (r *Resolver) GetParameter(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: secret name is required")
	}
	if v, ok := r.fromEnv(name); ok {
		return v, nil
	}
	r.mu.RLock()
	v, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return v, nil
	}
	if r.ssm == nil || r.prefix == "" {
		return "", fmt.Errorf("paramstore: secret %q is not configured", name)
	}
	v, err := r.ssm.GetParameter(ctx, r.path(name))
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.cache[name] = v
	r.mu.Unlock()
	return v, nil
}

// Prefetch loads every secret not supplied by the environment in as few SSM
// calls as possible. Without SSM it only verifies the environment.
func (r *Resolver) Prefetch(ctx context.Context, names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := r.fromEnv(n); !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if r.ssm == nil || r.prefix == "" {
		return fmt.Errorf("paramstore: secrets not configured: %s", strings.Join(missing, ", "))
	}
	batch, ok := r.ssm.(BatchGetter)
	if !ok {
		for _, n := range missing {
			if _, err := r.GetParameter(ctx, n); err != nil {
				return err
			}
		}
		return nil
	}
	paths := make([]string, len(missing))
	for i, n := range missing {
		paths[i] = r.path(n)
	}
	values, err := batch.GetParameters(ctx, paths)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range missing {
		v, ok := values[r.path(n)]
		if !ok {
			return fmt.Errorf("paramstore: parameter %q missing from response", r.path(n))
		}
		r.cache[n] = v
	}
	return nil
}

// Token resolves name and unwraps values stored as {"token": "..."} JSON.
func (r *Resolver) Token(ctx context.Context, name string) (string, error) {
	raw, err := r.GetParameter(ctx, name)
	if err != nil {
		return "", err
	}
	return DecodeToken(raw)
}

// DecodeToken returns the token carried by raw, which is either the bare
// token or a {"token": "..."} JSON document.
func DecodeToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var payload struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return "", fmt.Errorf("paramstore: unmarshal token value as JSON: %w", err)
		}
		raw = strings.TrimSpace(payload.Token)
	}
	if raw == "" {
		return "", errors.New("paramstore: token is empty")
	}
	return raw, nil
}

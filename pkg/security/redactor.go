package security

import (
	"fmt"
	"sort"
	"strings"
)

// SecretPrefix marks a configuration key whose value must never reach the logs.
const SecretPrefix = "#"

type Redactor struct {
	Secrets []string
}

// NewRedactor collects the values of every '#'-prefixed key found anywhere in params.
func NewRedactor(params map[string]any) *Redactor {
	r := &Redactor{}
	r.collect(params)
	return r
}

func (r *Redactor) collect(value any) {
	switch v := value.(type) {
	case map[string]any:
		for key, val := range v {
			if strings.HasPrefix(key, SecretPrefix) {
				if s := scalarString(val); s != "" {
					r.Secrets = append(r.Secrets, s)
				}
				continue
			}
			r.collect(val)
		}
	case []any:
		for _, item := range v {
			r.collect(item)
		}
	}
}

func scalarString(v any) string {
	switch s := v.(type) {
	case nil, map[string]any, []any:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}

// AddSecrets collects '#'-prefixed values from params, e.g. after function
// calls in them were evaluated.
func (r *Redactor) AddSecrets(params map[string]any) {
	r.collect(params)
}

// AddSecret registers an extra value to mask.
func (r *Redactor) AddSecret(secret string) {
	if secret == "" {
		return
	}
	r.Secrets = append(r.Secrets, secret)
}

func (r *Redactor) Redact(s string) string {
	if r == nil || len(r.Secrets) == 0 {
		return s
	}

	// Longer secrets first so a secret containing another one is masked whole.
	secrets := make([]string, len(r.Secrets))
	copy(secrets, r.Secrets)
	sort.Slice(secrets, func(i, j int) bool {
		return len(secrets[i]) > len(secrets[j])
	})

	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, "********")
	}
	return s
}

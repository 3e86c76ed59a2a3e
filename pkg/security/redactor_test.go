package security_test

import (
	"testing"

	"github.com/arnavsurve/crawlstep/pkg/security"
	"github.com/stretchr/testify/assert"
)

func TestRedactor_Redact(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		input  string
		want   string
	}{
		{
			name:   "exact match",
			params: map[string]any{"#password": "supersecret"},
			input:  "The password is supersecret",
			want:   "The password is ********",
		},
		{
			name:   "multiple occurrences",
			params: map[string]any{"#api_key": "abcdef"},
			input:  "API key: abcdef is being used. Backup key: abcdef should be stored.",
			want:   "API key: ******** is being used. Backup key: ******** should be stored.",
		},
		{
			name:   "plain keys are not secrets",
			params: map[string]any{"login": "jdoe", "#pwd": "hunter2"},
			input:  "jdoe logs in with hunter2",
			want:   "jdoe logs in with ********",
		},
		{
			name: "nested secret in action parameters",
			params: map[string]any{
				"steps": []any{
					map[string]any{"action_parameters": map[string]any{"#imgbb_token": "tok-123"}},
				},
			},
			input: "uploading with key=tok-123",
			want:  "uploading with key=********",
		},
		{
			name:   "overlapping secrets",
			params: map[string]any{"#short": "secret", "#long": "secretpassword"},
			input:  "value secretpassword and secret",
			want:   "value ******** and ********",
		},
		{
			name:   "numeric secret",
			params: map[string]any{"#pin": 4242},
			input:  "pin 4242",
			want:   "pin ********",
		},
		{
			name:   "no secrets",
			params: map[string]any{"login": "jdoe"},
			input:  "nothing to hide",
			want:   "nothing to hide",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := security.NewRedactor(tt.params)
			assert.Equal(t, tt.want, r.Redact(tt.input))
		})
	}
}

func TestRedactor_Nil(t *testing.T) {
	var r *security.Redactor
	assert.Equal(t, "untouched", r.Redact("untouched"))
}

func TestRedactor_AddSecret(t *testing.T) {
	r := security.NewRedactor(nil)
	r.AddSecret("")
	r.AddSecret("cookie-value")
	assert.Equal(t, "set ********", r.Redact("set cookie-value"))
}

func TestRedactor_AddSecrets(t *testing.T) {
	r := security.NewRedactor(map[string]any{"#token": map[string]any{"function": "concat"}})
	assert.Equal(t, "concat", r.Redact("concat"))

	r.AddSecrets(map[string]any{"#token": "abc-123", "login": "jdoe"})
	assert.Equal(t, "token ******** for jdoe", r.Redact("token abc-123 for jdoe"))
}

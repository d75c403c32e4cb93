package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("CACP_TEST_VALUE", "expanded")
	t.Setenv("CACP_TEST_HOST", "db.internal")
	t.Setenv("CACP_TEST_PORT", "5432")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple variable",
			input: "token: {{.CACP_TEST_VALUE}}",
			want:  "token: expanded",
		},
		{
			name:  "multiple variables",
			input: "dsn: {{.CACP_TEST_HOST}}:{{.CACP_TEST_PORT}}",
			want:  "dsn: db.internal:5432",
		},
		{
			name:  "missing variable expands to empty",
			input: "token: {{.CACP_NO_SUCH_VAR}}",
			want:  "token: ",
		},
		{
			name:  "literal dollar signs untouched",
			input: "password: p@ss$word and $PATH",
			want:  "password: p@ss$word and $PATH",
		},
		{
			name:  "no template syntax passes through",
			input: "plain: value",
			want:  "plain: value",
		},
		{
			name:  "malformed template returns original",
			input: "broken: {{.UNCLOSED",
			want:  "broken: {{.UNCLOSED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandEnv([]byte(tt.input))
			assert.Equal(t, tt.want, string(got))
		})
	}
}

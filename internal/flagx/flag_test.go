package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value kept",
			args:    []string{"-a", ":8080", "-x", "junk"},
			allowed: []string{"-a"},
			want:    []string{"-a", ":8080"},
		},
		{
			name:    "equals form kept",
			args:    []string{"--config=conf.json", "-d=dsn"},
			allowed: []string{"--config"},
			want:    []string{"--config=conf.json"},
		},
		{
			name:    "flag without value",
			args:    []string{"-v", "-a", ":9090"},
			allowed: []string{"-v"},
			want:    []string{"-v"},
		},
		{
			name:    "nothing allowed",
			args:    []string{"-a", "1", "-b", "2"},
			allowed: nil,
			want:    []string{},
		},
		{
			name:    "value starting with dash not consumed",
			args:    []string{"-a", "-b"},
			allowed: []string{"-a"},
			want:    []string{"-a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	os.Args = []string{"server", "-c", "conf.json", "-a", ":8080"}
	require.Equal(t, "conf.json", JsonConfigFlags())

	os.Args = []string{"server", "-config=other.json"}
	require.Equal(t, "other.json", JsonConfigFlags())

	os.Args = []string{"server", "-a", ":8080"}
	require.Equal(t, "", JsonConfigFlags())
}

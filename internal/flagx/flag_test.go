package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-c", "conf.json", "-a", "http://localhost"},
			allowedFlags: []string{"-c", "-config"},
			want:         []string{"-c", "conf.json"},
		},
		{
			name:         "flag with equals",
			args:         []string{"-config=alt.json", "-a", "http://localhost"},
			allowedFlags: []string{"-c", "-config"},
			want:         []string{"-config=alt.json"},
		},
		{
			name:         "positional link is dropped",
			args:         []string{"-a", "http://x", "careercoach://auth/verify?token=t"},
			allowedFlags: []string{"-a"},
			want:         []string{"-a", "http://x"},
		},
		{
			name:         "flag without value at the end",
			args:         []string{"-d"},
			allowedFlags: []string{"-d"},
			want:         []string{"-d"},
		},
		{
			name:         "unknown flags ignored",
			args:         []string{"-x", "1", "-y=2", "positional"},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowedFlags))
		})
	}
}

func TestPositional(t *testing.T) {
	valueFlags := []string{"-a", "-c", "-d"}

	assert.Equal(t,
		[]string{"careercoach://auth/verify?token=t"},
		Positional([]string{"-a", "http://x", "careercoach://auth/verify?token=t"}, valueFlags))

	assert.Equal(t,
		[]string{"one", "two"},
		Positional([]string{"-c=cfg.json", "one", "-d", "db", "two"}, valueFlags))

	assert.Equal(t,
		[]string{"-weird"},
		Positional([]string{"-a", "x", "--", "-weird"}, valueFlags))

	assert.Empty(t, Positional(nil, valueFlags))
}

func TestJsonConfigFlags(t *testing.T) {
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })

	os.Args = []string{"bin", "-a", "http://x", "-c", "cfg.json"}
	assert.Equal(t, "cfg.json", JsonConfigFlags())

	os.Args = []string{"bin", "-config=other.json"}
	assert.Equal(t, "other.json", JsonConfigFlags())

	os.Args = []string{"bin"}
	assert.Equal(t, "", JsonConfigFlags())
}

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPattern(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"dockercontainer_*_cpu", true},
		{"a_*_*_b", true},
		{"*_cpu", true},
		{"cpu_*", true},
		{"cpu_usage", false},
		{"nounderscore", false},
		// "*" has to stand alone as a token
		{"disk*usage", false},
		{"disk_us*ge_total", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPattern(tt.key), "key %q", tt.key)
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		id      string
		want    bool
	}{
		{"dockercontainer_*_cpu", "dockercontainer_plex_cpu", true},
		// interior tokens are ignored entirely, their count included
		{"dockercontainer_*_cpu", "dockercontainer_home_assistant_cpu", true},
		{"dockercontainer_*_cpu", "dockercontainer_cpu", true},
		{"a_*_b", "a_one_two_three_b", true},
		// a one-token id matches when the pattern's first and last tokens
		// are both that token
		{"status_*_status", "status", true},
		{"status_*_detail", "status", false},
		{"dockercontainer_*_cpu", "dockercontainer_plex_memory", false},
		{"dockercontainer_*_cpu", "docker_plex_cpu", false},
		// an edge "*" compares literally and ids never contain "*"
		{"*_cpu", "dockercontainer_plex_cpu", false},
		{"cpu_*", "cpu_usage", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Match(tt.pattern, tt.id), "pattern %q against %q", tt.pattern, tt.id)
	}
}

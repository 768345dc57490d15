package glob

import "testing"

func TestIgnored(t *testing.T) {
	tests := []struct {
		path    string
		extra   []string
		ignored bool
	}{
		{"README.md", nil, false},
		{".git/HEAD", nil, true},
		{"src/.cache/x", nil, true},
		{"node_modules/index.js", []string{"node_modules/*"}, true},
		{"src/main.go", []string{"node_modules/*"}, false},
	}
	for _, tt := range tests {
		if got := Ignored(tt.path, tt.extra); got != tt.ignored {
			t.Errorf("Ignored(%q, %v) = %v, want %v", tt.path, tt.extra, got, tt.ignored)
		}
	}
}

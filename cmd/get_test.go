package cmd

import (
	"testing"

	"github.com/snatchdl/snatch/pkg/snatchlib"
)

func TestParsePriority(t *testing.T) {
	cases := []struct {
		in      string
		want    snatchlib.Priority
		wantErr bool
	}{
		{"urgent", snatchlib.PriorityUrgent, false},
		{"high", snatchlib.PriorityHigh, false},
		{"normal", snatchlib.PriorityNormal, false},
		{"", snatchlib.PriorityNormal, false},
		{"  Low ", snatchlib.PriorityLow, false},
		{"BACKGROUND", snatchlib.PriorityBackground, false},
		{"asap", 0, true},
	}
	for _, c := range cases {
		got, err := parsePriority(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("parsePriority(%q): expected an error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePriority(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parsePriority(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		name string
		snap snatchlib.TaskSnapshot
		want string
	}{
		{
			name: "filename option",
			snap: snatchlib.TaskSnapshot{
				Url:     "http://e/a/b.iso",
				Options: map[string]string{"filename": "release.iso"},
			},
			want: "release.iso",
		},
		{
			name: "url tail",
			snap: snatchlib.TaskSnapshot{Url: "http://e/a/b.iso"},
			want: "b.iso",
		},
		{
			name: "trailing slash keeps full url",
			snap: snatchlib.TaskSnapshot{Url: "http://e/"},
			want: "http://e/",
		},
	}
	for _, c := range cases {
		if got := displayName(c.snap); got != c.want {
			t.Errorf("%s: displayName = %q, want %q", c.name, got, c.want)
		}
	}
}

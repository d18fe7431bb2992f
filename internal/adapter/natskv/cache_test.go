package natskv

import "testing"

func TestEncodeKey(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"tasks:list:p1", "tasks.list.p1"},
		{"tasks:list:", "tasks.list"},
		{"projects:list", "projects.list"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := encodeKey(tc.in); got != tc.want {
			t.Errorf("encodeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

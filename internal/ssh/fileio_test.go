package ssh

import "testing"

func TestParentDir(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/home/user/foo.txt", "/home/user"},
		{"/foo.txt", ""},
		{"foo.txt", ""},
		{"a/b/c", "a/b"},
	}
	for _, c := range cases {
		if got := parentDir(c.in); got != c.want {
			t.Errorf("parentDir(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

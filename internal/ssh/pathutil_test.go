package ssh

import (
	"os"
	"path/filepath"
	"testing"
)

func TestShellEscape(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"simple", "'simple'"},
		{"it's", `'it'\''s'`},
		{"", "''"},
		{"a'b'c", `'a'\''b'\''c'`},
	}
	for _, c := range cases {
		if got := ShellEscape(c.in); got != c.want {
			t.Errorf("ShellEscape(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestShellEscapeRemotePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"~", "$HOME"},
		{"~/projects", "$HOME/'projects'"},
		{"/abs/path", "'/abs/path'"},
	}
	for _, c := range cases {
		if got := ShellEscapeRemotePath(c.in); got != c.want {
			t.Errorf("ShellEscapeRemotePath(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeRemotePath(t *testing.T) {
	cases := []struct {
		p, base, want string
	}{
		{"foo.txt", "/home/user", "/home/user/foo.txt"},
		{"/abs/foo.txt", "/home/user", "/abs/foo.txt"},
		{"~/foo.txt", "/home/user", "~/foo.txt"},
	}
	for _, c := range cases {
		if got := NormalizeRemotePath(c.p, c.base); got != c.want {
			t.Errorf("NormalizeRemotePath(%q, %q) = %q, want %q", c.p, c.base, got, c.want)
		}
	}
}

func TestValidatePathWithin(t *testing.T) {
	base := t.TempDir()

	if _, err := ValidatePathWithin(base, "sub/file.txt"); err != nil {
		t.Errorf("expected nested path to validate, got %v", err)
	}
	if _, err := ValidatePathWithin(base, "../escape.txt"); err == nil {
		t.Error("expected traversal outside base to be rejected")
	}
	if _, err := ValidatePathWithin(base, "."); err != nil {
		t.Errorf("expected base dir itself to validate, got %v", err)
	}
}

func TestValidatePathWithinRejectsSymlinkEscape(t *testing.T) {
	base := t.TempDir()
	outside := t.TempDir()

	link := filepath.Join(base, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unsupported in this environment: %v", err)
	}

	if _, err := ValidatePathWithin(base, "escape/file.txt"); err == nil {
		t.Error("expected symlink escaping base directory to be rejected")
	}

	inside := filepath.Join(base, "real")
	if err := os.Mkdir(inside, 0o755); err != nil {
		t.Fatal(err)
	}
	insideLink := filepath.Join(base, "alias")
	if err := os.Symlink(inside, insideLink); err != nil {
		t.Fatal(err)
	}
	if _, err := ValidatePathWithin(base, "alias/file.txt"); err != nil {
		t.Errorf("expected symlink staying within base directory to validate, got %v", err)
	}
}

func TestParseConnectionString(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    ConnectionParts
		wantErr bool
	}{
		{
			name: "host only",
			in:   "alice@example.com",
			want: ConnectionParts{User: "alice", Host: "example.com", Port: 22, RemotePath: "~"},
		},
		{
			name: "with port",
			in:   "alice@example.com:2222",
			want: ConnectionParts{User: "alice", Host: "example.com", Port: 2222, RemotePath: "~"},
		},
		{
			name: "with absolute path, no port",
			in:   "alice@example.com:/srv/app",
			want: ConnectionParts{User: "alice", Host: "example.com", Port: 22, RemotePath: "/srv/app"},
		},
		{
			name: "with port and path",
			in:   "alice@example.com:2222:/srv/app",
			want: ConnectionParts{User: "alice", Host: "example.com", Port: 2222, RemotePath: "/srv/app"},
		},
		{
			name:    "missing user",
			in:      "example.com",
			wantErr: true,
		},
		{
			name:    "garbage port",
			in:      "alice@example.com:notaport",
			wantErr: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseConnectionString(c.in)
			if c.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got none", c.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", c.in, err)
			}
			if got != c.want {
				t.Errorf("ParseConnectionString(%q) = %+v, want %+v", c.in, got, c.want)
			}
		})
	}
}

package tools

import (
	"strings"

	"github.com/ssh-hub/ssh-gateway/internal/ssh"
)

// sedEscapeLiteral escapes text for use inside a sed 's/old/new/' literal
// match or replacement operand: sed's basic regular expression treats '/'
// as the delimiter, '\' as an escape, '&' as "the whole match" in the
// replacement position, '.', '*', '[', '^' and '$' as regex operators in
// the match position, and newlines can't appear in a single -e script at
// all. Escaping all of them keeps literal (non-regex) text inert on either
// side of the substitution.
func sedEscapeLiteral(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`/`, `\/`,
		`&`, `\&`,
		`.`, `\.`,
		`*`, `\*`,
		`[`, `\[`,
		`^`, `\^`,
		`$`, `\$`,
		"\n", `\n`,
	)
	return r.Replace(s)
}

// sedEscapeReplacement escapes text for the replacement side of a
// substitution built from a caller-supplied regex (operation=regex,
// replace_line). Backreferences like \1 are meaningful there, so only the
// delimiter, ampersand, and literal backslash-followed-by-non-digit need
// escaping; a bare "\1".."\9" is passed through untouched.
func sedEscapeReplacement(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '/':
			b.WriteString(`\/`)
		case '&':
			b.WriteString(`\&`)
		case '\n':
			b.WriteString(`\n`)
		case '\\':
			if i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9' {
				b.WriteByte(c)
			} else {
				b.WriteString(`\\`)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// sedEscapePattern escapes a caller-supplied pattern used as a sed
// address or the left side of an -E substitution: only the delimiter
// itself needs escaping, since the rest of the string is meant to be
// interpreted as a regular expression.
func sedEscapePattern(s string) string {
	return strings.ReplaceAll(s, "/", `\/`)
}

// sedEscapeInsertText escapes text for sed's "i\" / "a\" insert-text
// commands: a literal backslash must be doubled, and embedded newlines
// must become a backslash-newline continuation, since GNU and BSD sed both
// read an i\/a\ argument as a single backslash-continued block.
func sedEscapeInsertText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "\n", "\\\n")
}

// shellQuote wraps s for safe inclusion in a shell command line.
func shellQuote(s string) string {
	return ssh.ShellEscape(s)
}

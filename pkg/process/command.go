package process

import (
	"fmt"
	"os"
	"strings"
)

// SelfToken is the executable name that resolves to the running binary.
const SelfToken = "self"

// SplitCommand splits a command line into words the way a POSIX shell would
// for the simple cases: whitespace separates words, single quotes are
// literal, double quotes allow \" and \\ escapes, and a backslash outside
// quotes escapes the next character.
func SplitCommand(line string) ([]string, error) {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				cur.WriteRune(r)
			}
		case r == '\\':
			escaped = true
			inWord = true
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote in %q", quote, line)
	}
	if escaped {
		return nil, fmt.Errorf("trailing backslash in %q", line)
	}
	if inWord {
		words = append(words, cur.String())
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return words, nil
}

// ResolveSelf replaces a leading SelfToken with the path of the running
// executable, so commands like "self serve --side web" re-launch this binary.
func ResolveSelf(argv []string) ([]string, error) {
	if len(argv) == 0 || argv[0] != SelfToken {
		return argv, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", SelfToken, err)
	}
	out := append([]string{exe}, argv[1:]...)
	return out, nil
}

// ParseCommand is SplitCommand followed by ResolveSelf.
func ParseCommand(line string) ([]string, error) {
	argv, err := SplitCommand(line)
	if err != nil {
		return nil, err
	}
	return ResolveSelf(argv)
}

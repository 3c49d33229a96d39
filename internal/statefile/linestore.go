package statefile

import "strings"

// optionPrefix is the two-character marker that begins every option line
// (spec §3): a literal double quote followed by a space.
const optionPrefix = "\" "

// LineStore is an in-memory editor over a state file's textual buffer
// (spec §4.3). It keeps every line verbatim, including its original
// terminator, so that reading a file and applying zero mutations reproduces
// the identical byte sequence (spec §8 "Round-trip").
//
// lines[0] is always the secret line. Everything after it is either an
// option line (starts with optionPrefix), a scratch code line, or a blank
// line.
type LineStore struct {
	lines []string
}

// ParseLineStore splits raw into lines, preserving terminators, and
// validates that a secret line is present. It performs no further
// validation of the secret's contents; see statefile.Open for file-wide
// invariant checks (size, NUL bytes, permissions).
func ParseLineStore(raw []byte) (*LineStore, error) {
	lines := splitLinesKeepEnds(string(raw))
	if len(lines) == 0 || trimEOL(lines[0]) == "" {
		return nil, ErrEmptySecretLine
	}

	return &LineStore{lines: lines}, nil
}

// Secret returns the contents of line 1 with its line terminator trimmed;
// the value is not BASE32-decoded.
func (s *LineStore) Secret() string {
	return trimEOL(s.lines[0])
}

// Get returns the trimmed value of the first option line matching key, and
// whether it was found.
func (s *LineStore) Get(key string) (string, bool) {
	for _, line := range s.lines[1:] {
		if value, ok := matchOptionLine(line, key); ok {
			return value, true
		}
	}

	return "", false
}

// Set replaces the first option line matching key in place, or inserts a
// new line immediately after the secret line if none exists. Any later
// duplicate of the same key is removed, preserving the at-most-one-per-key
// invariant (spec §3, §4.3).
func (s *LineStore) Set(key, value string) {
	newLine := optionPrefix + key + " " + value + "\n"

	for i := 1; i < len(s.lines); i++ {
		if _, ok := matchOptionLine(s.lines[i], key); ok {
			s.lines[i] = newLine
			s.removeDuplicatesAfter(i, key)

			return
		}
	}

	// No existing line: insert immediately after the secret line.
	s.lines = append(s.lines[:1], append([]string{newLine}, s.lines[1:]...)...)
	s.removeDuplicatesAfter(1, key)
}

// Delete removes every option line matching key. Reports whether any line
// was removed.
func (s *LineStore) Delete(key string) bool {
	removed := false

	filtered := s.lines[:1:1]

	for _, line := range s.lines[1:] {
		if _, ok := matchOptionLine(line, key); ok {
			removed = true

			continue
		}

		filtered = append(filtered, line)
	}

	s.lines = filtered

	return removed
}

// Bytes reconstructs the full buffer, byte-for-byte identical to the input
// of ParseLineStore when no mutation has been applied.
func (s *LineStore) Bytes() []byte {
	return []byte(strings.Join(s.lines, ""))
}

// OptionAndScratchLines returns every line after the secret, unmodified,
// for use by components that need to scan past the option block (the
// scratch code ledger).
func (s *LineStore) OptionAndScratchLines() []string {
	return s.lines[1:]
}

// replaceTail replaces every line after the secret with tail. Used by the
// scratch code ledger to rewrite the buffer after consuming a code.
func (s *LineStore) replaceTail(tail []string) {
	s.lines = append(s.lines[:1:1], tail...)
}

func (s *LineStore) removeDuplicatesAfter(index int, key string) {
	filtered := s.lines[:index+1:index+1]

	for _, line := range s.lines[index+1:] {
		if _, ok := matchOptionLine(line, key); ok {
			continue
		}

		filtered = append(filtered, line)
	}

	s.lines = filtered
}

// matchOptionLine reports whether line is an option line for key, and if
// so its trimmed value. An option line matches iff it begins with
// optionPrefix, followed by key, followed by end-of-line or whitespace
// (spec §4.3).
func matchOptionLine(line, key string) (string, bool) {
	if !strings.HasPrefix(line, optionPrefix) {
		return "", false
	}

	rest := line[len(optionPrefix):]
	if !strings.HasPrefix(rest, key) {
		return "", false
	}

	after := rest[len(key):]
	if after != "" {
		switch after[0] {
		case ' ', '\t', '\r', '\n':
		default:
			return "", false
		}
	}

	value := strings.TrimLeft(after, " \t")

	return trimEOL(value), true
}

// splitLinesKeepEnds splits s into lines, each retaining its trailing "\n"
// (and any preceding "\r") except possibly a final unterminated line.
func splitLinesKeepEnds(s string) []string {
	var lines []string

	start := 0

	for i := range s {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}

	if start < len(s) {
		lines = append(lines, s[start:])
	}

	return lines
}

// trimEOL strips a trailing "\r\n" or "\n" from line.
func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	return line
}

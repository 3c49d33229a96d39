package statefile

import (
	"strconv"
	"strings"
)

// scratchMinValue is the smallest 8-digit decimal value: scratch codes are
// distinguished from other numeric lines by requiring all 8 digits (spec
// §4.5, §8 boundary case "9999999 is not a scratch match").
const scratchMinValue = 10_000_000

// ConsumeScratch searches the lines following the option block for a
// plaintext scratch code equal to code. On a match it removes that line
// (shifting the remainder up) and reports true.
//
// The scan tolerates interleaved option lines and blank lines before each
// candidate, exactly as the reference implementation's loop re-skips them
// before every parse attempt; it stops only at the first line that is
// neither blank, an option line, nor a qualifying scratch code.
func (s *LineStore) ConsumeScratch(code int) bool {
	tail := s.OptionAndScratchLines()

	for i := 0; i < len(tail); i++ {
		if isSkippableBeforeScratch(tail[i]) {
			continue
		}

		value, ok := parseScratchLine(tail[i])
		if !ok {
			break
		}

		if value == code {
			rest := append(append([]string{}, tail[:i]...), tail[i+1:]...)
			s.replaceTail(rest)

			return true
		}
	}

	return false
}

// ScratchCodes returns every scratch code currently present, in file order,
// without mutating the buffer.
func (s *LineStore) ScratchCodes() []int {
	tail := s.OptionAndScratchLines()

	var codes []int

	for i := 0; i < len(tail); i++ {
		if isSkippableBeforeScratch(tail[i]) {
			continue
		}

		value, ok := parseScratchLine(tail[i])
		if !ok {
			break
		}

		codes = append(codes, value)
	}

	return codes
}

func isSkippableBeforeScratch(line string) bool {
	if strings.HasPrefix(line, optionPrefix) {
		return true
	}

	return trimEOL(line) == ""
}

// parseScratchLine reports whether line is exactly an 8+-digit decimal
// integer (optionally followed only by its line terminator) of at least
// scratchMinValue.
func parseScratchLine(line string) (int, bool) {
	body := trimEOL(line)
	if body == "" {
		return 0, false
	}

	for _, r := range body {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	value, err := strconv.Atoi(body)
	if err != nil || value < scratchMinValue {
		return 0, false
	}

	return value, true
}

package extract

import (
	"unicode"
)

// MinInlineKeyLength is the shortest identifier the free-text heuristic
// accepts. Real lockeys are long dotted-off camel phrases; short camel words
// are overwhelmingly ordinary prose or code fragments.
const MinInlineKeyLength = 15

// ScanInlineKeys finds embedded camelCase identifiers in free-form text.
// A candidate must start with a lowercase letter, contain an uppercase
// letter after the first character, be at least MinInlineKeyLength long and
// not be immediately preceded by a dot (property accesses are not keys).
//
// Authors paste keys glued to ALL-CAPS keywords ("...TitleLabelELSEnext...");
// runs of two or more consecutive uppercase letters never occur inside a
// camelCase key, so such runs act as separators. Lowercase keyword
// substrings are left alone: "Landing" keeps its "and".
func ScanInlineKeys(text string) []string {
	var keys []string

	runStart := -1
	for i, r := range text {
		if isAlnum(r) {
			if runStart == -1 {
				runStart = i
			}
			continue
		}
		if runStart != -1 {
			keys = appendRunKeys(keys, text, runStart, i)
			runStart = -1
		}
	}
	if runStart != -1 {
		keys = appendRunKeys(keys, text, runStart, len(text))
	}
	return keys
}

func appendRunKeys(keys []string, text string, start, end int) []string {
	precededByDot := start > 0 && text[start-1] == '.'
	for i, segment := range splitCapsRuns(text[start:end]) {
		if i == 0 && precededByDot {
			continue
		}
		if isInlineKey(segment) {
			keys = append(keys, segment)
		}
	}
	return keys
}

// splitCapsRuns splits an alphanumeric run at every maximal sequence of two
// or more uppercase letters, dropping the sequence itself.
func splitCapsRuns(run string) []string {
	var segments []string
	segStart := 0
	i := 0
	for i < len(run) {
		if !isUpperByte(run[i]) {
			i++
			continue
		}
		j := i
		for j < len(run) && isUpperByte(run[j]) {
			j++
		}
		if j-i >= 2 {
			if i > segStart {
				segments = append(segments, run[segStart:i])
			}
			segStart = j
		}
		i = j
	}
	if segStart < len(run) {
		segments = append(segments, run[segStart:])
	}
	return segments
}

func isInlineKey(segment string) bool {
	if len(segment) < MinInlineKeyLength {
		return false
	}
	first := rune(segment[0])
	if !unicode.IsLower(first) {
		return false
	}
	hasUpper := false
	for _, r := range segment[1:] {
		if unicode.IsUpper(r) {
			hasUpper = true
			break
		}
	}
	return hasUpper
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isUpperByte(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

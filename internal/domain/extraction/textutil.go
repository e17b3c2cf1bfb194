package extraction

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// normalizeText replaces invalid UTF-8 with U+FFFD and applies NFKC
// normalization so full-width digits, superscripts and compatibility forms
// scan like their plain equivalents.
func normalizeText(s string) string {
	return norm.NFKC.String(strings.ToValidUTF8(s, "\uFFFD"))
}

// lowerSameLen lower-cases s while keeping every byte offset valid for the
// original string. Runes whose lower-case form has a different encoded length
// are left unchanged.
func lowerSameLen(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteByte(s[i])
			i++
			continue
		}
		lr := unicode.ToLower(r)
		if utf8.RuneLen(lr) != size {
			lr = r
		}
		b.WriteRune(lr)
		i += size
	}
	return b.String()
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b >= 0x80
}

// indexWord returns the byte offset of the first occurrence of term in s that
// does not sit inside a longer word, or -1.
func indexWord(s, term string) int {
	if term == "" {
		return -1
	}
	from := 0
	for from <= len(s)-len(term) {
		i := strings.Index(s[from:], term)
		if i < 0 {
			return -1
		}
		start := from + i
		end := start + len(term)
		leftOK := start == 0 || !isWordByte(s[start-1]) || !isWordByte(term[0])
		rightOK := end == len(s) || !isWordByte(s[end]) || !isWordByte(term[len(term)-1])
		if leftOK && rightOK {
			return start
		}
		from = start + 1
	}
	return -1
}

// containsPhrase reports whether phrase occurs in window starting at a word
// boundary, so "no " does not fire inside "piano ".
func containsPhrase(window, phrase string) bool {
	from := 0
	for {
		i := strings.Index(window[from:], phrase)
		if i < 0 {
			return false
		}
		start := from + i
		if start == 0 || !isWordByte(window[start-1]) {
			return true
		}
		from = start + 1
	}
}

// runeStart moves i backwards to the start of a UTF-8 sequence.
func runeStart(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// precedingWindow returns up to width bytes before pos, cut back to the last
// clause terminator so phrases in an earlier clause do not apply.
func precedingWindow(lower string, pos, width int) string {
	start := runeStart(lower, pos-width)
	w := lower[start:pos]
	cut := sentenceEnd(w)
	for _, t := range clauseTerminators {
		if i := strings.LastIndex(w, t); i >= 0 && i+len(t) > cut {
			cut = i + len(t)
		}
	}
	if cut > 0 {
		return w[cut:]
	}
	if start > 0 && isWordByte(lower[start-1]) {
		// drop the partial word the window starts in
		if i := strings.IndexByte(w, ' '); i >= 0 {
			return w[i:]
		}
		return ""
	}
	return w
}

// sentenceEnd returns the offset just past the last full stop in w that ends
// a sentence, or -1. The stop must be followed by white space or the end of
// w, and must not close an abbreviation ("e.g.", "dr.", "b.").
func sentenceEnd(w string) int {
	for i := strings.LastIndexByte(w, '.'); i >= 0; i = strings.LastIndexByte(w[:i], '.') {
		if i+1 < len(w) && !unicode.IsSpace(rune(w[i+1])) {
			continue
		}
		word := w[strings.LastIndexAny(w[:i], " \t\n(")+1 : i]
		initial := len(word) == 1 && word[0] >= 'a' && word[0] <= 'z'
		if initial || strings.Contains(word, ".") || abbreviations[word] {
			continue
		}
		return i + 1
	}
	return -1
}

// followingWindow returns up to width bytes after pos.
func followingWindow(s string, pos, width int) string {
	if pos >= len(s) {
		return ""
	}
	if pos+width >= len(s) {
		return s[pos:]
	}
	return s[pos:runeStart(s, pos+width)]
}

// sourceSpan returns the trimmed text surrounding [start,end).
func sourceSpan(s string, start, end int) string {
	from := runeStart(s, start-spanPadding)
	to := end + spanPadding
	if to >= len(s) {
		to = len(s)
	} else {
		to = runeStart(s, to)
	}
	return strings.Join(strings.Fields(s[from:to]), " ")
}

// detectLanguage flags Hindi-English mixed text when more than a tenth of the
// runes are Devanagari.
func detectLanguage(s string) string {
	total, devanagari := 0, 0
	for _, r := range s {
		total++
		if r >= 0x0900 && r <= 0x097F {
			devanagari++
		}
	}
	if total > 0 && float64(devanagari) > float64(total)*0.1 {
		return "hi-en"
	}
	return "en"
}

package provenance

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Trail records which approved phrase ids and reason codes produced a piece of
// output. Identifiers are kept in first-use order without duplicates so two
// runs over the same input yield identical trails.
type Trail struct {
	PhraseIDs   []string `json:"phrase_ids"`
	ReasonCodes []string `json:"reason_codes"`
}

// AddPhrase records a phrase id. Empty ids are ignored.
func (t *Trail) AddPhrase(id string) {
	t.PhraseIDs = appendUnique(t.PhraseIDs, id)
}

// AddReason records a reason code. Empty codes are ignored.
func (t *Trail) AddReason(code string) {
	t.ReasonCodes = appendUnique(t.ReasonCodes, code)
}

// Merge appends every identifier of other that t does not yet hold.
func (t *Trail) Merge(other Trail) {
	for _, id := range other.PhraseIDs {
		t.AddPhrase(id)
	}
	for _, code := range other.ReasonCodes {
		t.AddReason(code)
	}
}

// Clone returns a deep copy.
func (t Trail) Clone() Trail {
	out := Trail{
		PhraseIDs:   make([]string, len(t.PhraseIDs)),
		ReasonCodes: make([]string, len(t.ReasonCodes)),
	}
	copy(out.PhraseIDs, t.PhraseIDs)
	copy(out.ReasonCodes, t.ReasonCodes)
	return out
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// Fingerprint returns a hex SHA-256 digest over the given parts. Each part is
// length-prefixed so ("ab","c") and ("a","bc") differ.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strconv.Itoa(len(p))))
		h.Write([]byte{':'})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Clock supplies generation timestamps. It is the only source of variance
// permitted in assembled output.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

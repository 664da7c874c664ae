package sites

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/unicode/norm"
)

// firstPresent returns the first value at paths that is set and non-empty:
// not null, false, zero, "" or an empty collection. It returns an empty
// Result when none qualifies.
func firstPresent(item gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := item.Get(p); present(v) {
			return v
		}
	}
	return gjson.Result{}
}

func present(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	case gjson.JSON:
		if v.IsArray() {
			return len(v.Array()) > 0
		}
		return len(v.Map()) > 0
	default:
		return true
	}
}

// intOrZero converts an integral JSON number to int64. Anything else,
// including fractional numbers and numeric strings, yields 0.
func intOrZero(v gjson.Result) int64 {
	if v.Type != gjson.Number || v.Num != math.Trunc(v.Num) {
		return 0
	}
	return v.Int()
}

// intOrDigitsOrZero is intOrZero that also accepts an all-digit string.
func intOrDigitsOrZero(v gjson.Result) int64 {
	if v.Type == gjson.String && isDigits(v.Str) {
		n, err := strconv.ParseInt(v.Str, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return intOrZero(v)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// idString renders an identifier that sites send as either a string or a
// number. Missing, null and empty values render as "".
func idString(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return v.Raw
	default:
		return ""
	}
}

// cleanName trims and NFC-normalizes a display name.
func cleanName(v gjson.Result) string {
	if v.Type != gjson.String {
		return ""
	}
	return norm.NFC.String(strings.TrimSpace(v.Str))
}

// cleanText NFC-normalizes free text without altering its layout.
func cleanText(v gjson.Result) string {
	if v.Type != gjson.String {
		return ""
	}
	return norm.NFC.String(v.Str)
}

func counter(n int64) *int64 {
	return &n
}

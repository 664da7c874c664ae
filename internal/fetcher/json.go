package fetcher

import (
	"github.com/tidwall/gjson"
)

// ParseJSON validates body and returns it as a gjson document. Lookups on
// missing fields yield zero results instead of errors.
func ParseJSON(url string, body []byte) (gjson.Result, error) {
	if len(body) == 0 {
		return gjson.Result{}, &ParseError{URL: url, Reason: "empty body"}
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, &ParseError{URL: url, Reason: "invalid JSON"}
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return gjson.Result{}, &ParseError{URL: url, Reason: "expected a JSON object, got " + doc.Type.String()}
	}
	return doc, nil
}

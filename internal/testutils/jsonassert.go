package testutils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mcuadros/go-defaults"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// Presence matches any value in an expected JSON document, e.g. a timestamp.
const Presence = "<<PRESENCE>>"

type JSONAssertOptions struct {
	IgnoreExtraKeys bool `default:"false"`
}

// JSONOption configures a JSONAsserter
type JSONOption func(*JSONAssertOptions)

func WithIgnoreExtraKeys() JSONOption {
	return func(o *JSONAssertOptions) { o.IgnoreExtraKeys = true }
}

// JSONAsserter compares JSON documents structurally and reports a gojsondiff delta.
type JSONAsserter struct {
	t       TestingT
	options JSONAssertOptions
}

func NewJSONAsserter(t TestingT, opts ...JSONOption) *JSONAsserter {
	o := JSONAssertOptions{}
	defaults.SetDefaults(&o)
	for _, opt := range opts {
		opt(&o)
	}
	return &JSONAsserter{t: t, options: o}
}

// Assert compares a single JSON document.
func (ja *JSONAsserter) Assert(actualJSON, expectedJSON string) bool {
	ja.t.Helper()
	if diff := ja.Diff(actualJSON, expectedJSON); diff != "" {
		ja.t.Errorf("JSON assertion failed:\n%s", diff)
		return false
	}
	return true
}

// AssertLines compares newline-delimited JSON, one expected document per line.
func (ja *JSONAsserter) AssertLines(actual string, expected ...string) bool {
	ja.t.Helper()
	lines := strings.Split(strings.TrimSpace(actual), "\n")
	if len(lines) != len(expected) {
		ja.t.Errorf("JSON assertion failed: got %d lines, want %d:\n%s", len(lines), len(expected), actual)
		return false
	}
	ok := true
	for i := range lines {
		if diff := ja.Diff(lines[i], expected[i]); diff != "" {
			ja.t.Errorf("JSON assertion failed on line %d:\n%s", i+1, diff)
			ok = false
		}
	}
	return ok
}

// Diff returns a human-readable delta, or "" when the documents match.
func (ja *JSONAsserter) Diff(actualJSON, expectedJSON string) string {
	var expected, actual map[string]interface{}
	if err := json.Unmarshal([]byte(expectedJSON), &expected); err != nil {
		return fmt.Sprintf("invalid expected JSON object: %v", err)
	}
	if err := json.Unmarshal([]byte(actualJSON), &actual); err != nil {
		return fmt.Sprintf("invalid actual JSON object: %v", err)
	}

	resolvePresence(expected, actual)
	if ja.options.IgnoreExtraKeys {
		pruneExtraKeys(actual, expected)
	}

	expectedBytes, _ := json.Marshal(expected)
	actualBytes, _ := json.Marshal(actual)
	diff, err := gojsondiff.New().Compare(expectedBytes, actualBytes)
	if err != nil {
		return fmt.Sprintf("JSON comparison failed: %v", err)
	}
	if !diff.Modified() {
		return ""
	}

	f := formatter.NewAsciiFormatter(expected, formatter.AsciiFormatterConfig{ShowArrayIndex: true})
	out, _ := f.Format(diff)
	return out
}

// resolvePresence copies actual values over Presence placeholders, keeping absent keys absent.
func resolvePresence(expected, actual map[string]interface{}) {
	for k, v := range expected {
		switch ev := v.(type) {
		case string:
			if ev != Presence {
				continue
			}
			if av, ok := actual[k]; ok {
				expected[k] = av
			}
		case map[string]interface{}:
			if av, ok := actual[k].(map[string]interface{}); ok {
				resolvePresence(ev, av)
			}
		}
	}
}

func pruneExtraKeys(actual, expected map[string]interface{}) {
	for k, v := range actual {
		ev, ok := expected[k]
		if !ok {
			delete(actual, k)
			continue
		}
		am, aok := v.(map[string]interface{})
		em, eok := ev.(map[string]interface{})
		if aok && eok {
			pruneExtraKeys(am, em)
		}
	}
}

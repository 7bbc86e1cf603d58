package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"apirelay/internal/registry"
)

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

// ExtractURL returns the first absolute URL embedded in s, or "" when none
// is present. A string result carrying a URL is treated as an indirection:
// a pointer to the real payload.
func ExtractURL(s string) string {
	return urlPattern.FindString(s)
}

// IsHTMLDocument reports whether s begins with an HTML doctype declaration.
func IsHTMLDocument(s string) bool {
	const doctype = "<!doctype html"
	trimmed := strings.TrimSpace(s)
	return len(trimmed) >= len(doctype) && strings.EqualFold(trimmed[:len(doctype)], doctype)
}

// GetData runs the full normalization contract on top of FetchRaw and
// produces exactly one of (text, data):
//
//  1. fetch raw;
//  2. a string result for a non-text endpoint is scanned for an embedded
//     URL; when found, the ORIGINAL url list is re-fetched for bytes (the
//     discovered URL only signals indirection, it is not itself fetched);
//  3. a JSON result is drilled into via the dotted target path;
//  4. an HTML document string is reduced to its visible text;
//  5. a successful run that still holds no text and no bytes is an
//     ErrEmptyResponse.
func (c *Client) GetData(ctx context.Context, urls []string, params map[string]string, kind registry.Kind, target string) (string, []byte, error) {
	res, err := c.FetchRaw(ctx, urls, params, false)
	if err != nil {
		return "", nil, err
	}

	if res.Kind() == ResultText && kind != registry.KindText {
		if indirect := ExtractURL(res.Text()); indirect != "" {
			replaced, err := c.redownload(ctx, urls)
			if err != nil {
				return "", nil, &DownloadError{URL: indirect, Err: err}
			}
			res = replaced
		}
	}

	if res.Kind() == ResultJSON && target != "" {
		res = resolveTarget(res.JSON(), target)
	}

	if res.Kind() == ResultText && IsHTMLDocument(res.Text()) {
		text, err := htmlText(res.Text())
		if err != nil {
			return "", nil, fmt.Errorf("parse html response: %w", err)
		}
		res = TextResult(text)
	}

	switch res.Kind() {
	case ResultText:
		if res.Text() == "" {
			return "", nil, ErrEmptyResponse
		}
		return res.Text(), nil, nil
	case ResultBytes:
		if len(res.Bytes()) == 0 {
			return "", nil, ErrEmptyResponse
		}
		return "", res.Bytes(), nil
	default:
		return "", nil, ErrEmptyResponse
	}
}

// redownload re-issues the original URL chain expecting a binary payload.
// Kept separate from the detection step so either side of the indirection
// behavior stays independently testable.
func (c *Client) redownload(ctx context.Context, urls []string) (Result, error) {
	res, err := c.FetchRaw(ctx, urls, nil, false)
	if err != nil {
		return Result{}, err
	}
	if res.Kind() != ResultBytes {
		return Result{}, fmt.Errorf("expected binary payload, got variant %d", res.Kind())
	}
	return res, nil
}

// resolveTarget drills into a decoded JSON value along a dotted path and
// renders the resolved value: nested maps become key: value lines, strings
// stay strings, remaining scalars and lists are formatted.
func resolveTarget(v any, target string) Result {
	resolved := nestedValue(v, target)
	switch val := resolved.(type) {
	case nil:
		return Result{}
	case string:
		return TextResult(val)
	case map[string]any:
		return TextResult(mapLines(val))
	default:
		return TextResult(formatScalar(val))
	}
}

// nestedValue walks a dotted path through decoded JSON, supporting object
// keys and numeric list indices. A dead end yields nil.
func nestedValue(v any, target string) any {
	cur := v
	for _, part := range strings.Split(target, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			cur = node[idx]
		default:
			return nil
		}
	}
	return cur
}

// mapLines flattens a JSON object into sorted "key: value" lines.
func mapLines(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, formatScalar(m[k])))
	}
	return strings.Join(lines, "\n")
}

// formatScalar renders a decoded JSON leaf the way it appeared on the wire.
func formatScalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(encoded)
	}
}

// htmlText strips markup from an HTML document, returning visible text
// with whitespace collapsed.
func htmlText(doc string) (string, error) {
	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return "", err
	}
	parsed.Find("script, style").Remove()
	return strings.Join(strings.Fields(parsed.Text()), " "), nil
}

// Package registry owns the endpoint catalog and trigger matching.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies the payload an endpoint returns.
type Kind string

// Supported endpoint payload kinds.
const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// DefaultKind is used when a stored definition carries an unknown type.
const DefaultKind = KindImage

// ErrInvalidDefinition reports a registration payload without a usable keyword.
var ErrInvalidDefinition = errors.New("endpoint definition has no keyword")

// ValidKind reports whether k is one of the supported payload kinds.
func ValidKind(k Kind) bool {
	switch k {
	case KindText, KindImage, KindVideo, KindAudio:
		return true
	}
	return false
}

// ParseKind coerces a raw type string into a supported Kind, falling back
// to the provided default for unknown or empty values.
func ParseKind(s string, fallback Kind) Kind {
	k := Kind(s)
	if ValidKind(k) {
		return k
	}
	return fallback
}

// Definition is the normalized view of a registered endpoint. The first
// keyword is the endpoint's identity; URLs form the failover chain.
type Definition struct {
	Keywords []string          `json:"keyword"`
	URLs     []string          `json:"url"`
	Type     Kind              `json:"type"`
	Params   map[string]string `json:"params,omitempty"`
	Target   string            `json:"target,omitempty"`
	Fuzzy    bool              `json:"fuzzy,omitempty"`
	Priority int               `json:"priority,omitempty"`
}

// Name returns the primary keyword, the definition's identity.
func (d Definition) Name() string {
	if len(d.Keywords) == 0 {
		return ""
	}
	return d.Keywords[0]
}

// Clone returns a deep, independent copy. Callers may mutate the result
// without affecting the registry's canonical state.
func (d Definition) Clone() Definition {
	out := d
	out.Keywords = append([]string(nil), d.Keywords...)
	out.URLs = append([]string(nil), d.URLs...)
	if d.Params != nil {
		out.Params = make(map[string]string, len(d.Params))
		for k, v := range d.Params {
			out.Params[k] = v
		}
	}
	return out
}

// stringList accepts either a JSON scalar string or an array of strings.
// The persisted catalog historically mixes both shapes.
type stringList []string

// UnmarshalJSON decodes a scalar or a list into a slice.
func (s *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("decode string list: %w", err)
		}
		*s = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("decode string: %w", err)
	}
	if single == "" {
		*s = nil
		return nil
	}
	*s = []string{single}
	return nil
}

// MarshalJSON writes a lone entry back as a scalar, matching the shape
// most catalog files are authored in.
func (s stringList) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}

// rawDefinition is the as-persisted catalog entry before normalization.
type rawDefinition struct {
	Keyword  stringList        `json:"keyword"`
	URL      stringList        `json:"url"`
	Type     string            `json:"type,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
	Target   string            `json:"target,omitempty"`
	Fuzzy    bool              `json:"fuzzy,omitempty"`
	Priority int               `json:"priority,omitempty"`
}

// normalize produces the coerced, defaulted, deep-copied Definition view.
func (r rawDefinition) normalize(defaultType Kind) Definition {
	keywords := make([]string, 0, len(r.Keyword))
	for _, k := range r.Keyword {
		if k != "" {
			keywords = append(keywords, k)
		}
	}
	urls := make([]string, 0, len(r.URL))
	for _, u := range r.URL {
		if u != "" {
			urls = append(urls, u)
		}
	}
	params := make(map[string]string, len(r.Params))
	for k, v := range r.Params {
		params[k] = v
	}
	return Definition{
		Keywords: keywords,
		URLs:     urls,
		Type:     ParseKind(r.Type, defaultType),
		Params:   params,
		Target:   r.Target,
		Fuzzy:    r.Fuzzy,
		Priority: r.Priority,
	}
}

// fromDefinition converts an API-supplied Definition into the stored shape.
func fromDefinition(d Definition) rawDefinition {
	return rawDefinition{
		Keyword:  append(stringList(nil), d.Keywords...),
		URL:      append(stringList(nil), d.URLs...),
		Type:     string(d.Type),
		Params:   d.Params,
		Target:   d.Target,
		Fuzzy:    d.Fuzzy,
		Priority: d.Priority,
	}
}

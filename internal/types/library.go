// Package types provides type definitions for structured data shared across the libdb system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"sort"
	"strings"
)

// Language is a target programming language for discovered libraries
type Language string

// Supported languages
const (
	Rust       Language = "Rust"
	JavaScript Language = "JavaScript"
)

// Languages is the fixed language universe searched during topic discovery.
var Languages = []Language{Rust, JavaScript}

// String returns the display name used in search queries and prompts
func (l Language) String() string {
	return string(l)
}

// Valid reports whether l is one of the supported languages
func (l Language) Valid() bool {
	for _, known := range Languages {
		if l == known {
			return true
		}
	}
	return false
}

// ParseLanguage resolves a case-insensitive language name ("rust", "JavaScript", "js").
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rust":
		return Rust, nil
	case "javascript", "js":
		return JavaScript, nil
	default:
		return "", fmt.Errorf("unsupported language: %q", s)
	}
}

// LibraryReference is the identity of a library record. Equality is structural on
// both fields, so it can be used directly as a map key.
type LibraryReference struct {
	Name     string   `json:"name"`
	Language Language `json:"language"`
}

// String renders the reference the way it appears in log messages
func (r LibraryReference) String() string {
	return fmt.Sprintf("%s [%s]", r.Name, r.Language)
}

// Key returns a stable storage and index key of the form "<Language>/<name>"
func (r LibraryReference) Key() string {
	return string(r.Language) + "/" + r.Name
}

// ParseKey is the inverse of LibraryReference.Key
func ParseKey(key string) (LibraryReference, error) {
	lang, name, ok := strings.Cut(key, "/")
	if !ok || name == "" {
		return LibraryReference{}, fmt.Errorf("malformed library key: %q", key)
	}
	language, err := ParseLanguage(lang)
	if err != nil {
		return LibraryReference{}, err
	}
	return LibraryReference{Name: name, Language: language}, nil
}

// LibraryDetails is the full read model of an analysed library
type LibraryDetails struct {
	Name        string   `json:"name"`
	Language    Language `json:"language"`
	Repository  string   `json:"repository"`
	Description string   `json:"description"`
	Topics      []string `json:"topics"`
}

// Reference returns the identity of the described library
func (d LibraryDetails) Reference() LibraryReference {
	return LibraryReference{Name: d.Name, Language: d.Language}
}

// SortReferences orders references by language, then name. Set semantics are kept by
// callers; sorting only makes snapshots stable for output.
func SortReferences(refs []LibraryReference) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Language != refs[j].Language {
			return refs[i].Language < refs[j].Language
		}
		return refs[i].Name < refs[j].Name
	})
}

// TagSet deduplicates tags and returns them sorted
func TagSet(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

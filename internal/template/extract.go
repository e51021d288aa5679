package template

import (
	"errors"
	"fmt"
)

// Target is a named target with its ordered template alternatives.
// Alternatives cover platform variants of the same code shape.
type Target struct {
	Name     string
	Patterns []string
}

// Match is the result of matching one target against one function.
type Match struct {
	Target       string `json:"target"`
	PatternIndex int    `json:"pattern_index"`
	Pattern      string `json:"pattern"`
	Address      uint64 `json:"address"`
	HasCapture   bool   `json:"has_capture"`
}

// Cache holds compiled matchers keyed by template text. A Cache belongs to a
// single worker and is not safe for concurrent use.
type Cache struct {
	matchers map[string]*Matcher
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{matchers: make(map[string]*Matcher)}
}

// Get returns the compiled matcher for pattern, compiling it on first use.
func (c *Cache) Get(pattern string) (*Matcher, error) {
	if m, ok := c.matchers[pattern]; ok {
		return m, nil
	}
	m, err := Compile(pattern)
	if err != nil {
		return nil, err
	}
	c.matchers[pattern] = m
	return m, nil
}

// Prepare compiles every alternative of every target up front.
func (c *Cache) Prepare(targets []Target) error {
	for _, t := range targets {
		for _, p := range t.Patterns {
			if _, err := c.Get(p); err != nil {
				return fmt.Errorf("target %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

// Len returns the number of compiled matchers.
func (c *Cache) Len() int {
	return len(c.matchers)
}

// FindFirst tries the target's alternatives in order and stops at the first
// one that matches. ok is false when every alternative failed.
func FindFirst(text string, target Target, cache *Cache) (Match, bool, error) {
	if cache == nil {
		cache = NewCache()
	}
	for i, p := range target.Patterns {
		m, err := cache.Get(p)
		if err != nil {
			return Match{}, false, fmt.Errorf("target %s: %w", target.Name, err)
		}
		res, ok, err := m.Find(text)
		if err != nil {
			var cpe *CaptureParseError
			if errors.As(err, &cpe) {
				cpe.Target = target.Name
			}
			return Match{}, false, err
		}
		if !ok {
			continue
		}
		return Match{
			Target:       target.Name,
			PatternIndex: i,
			Pattern:      res.Pattern,
			Address:      res.Value,
			HasCapture:   res.HasCapture,
		}, true, nil
	}
	return Match{}, false, nil
}

// ExtractAll matches every target against text in order. Targets with no
// matching alternative are left out. The first error aborts extraction.
func ExtractAll(text string, targets []Target, cache *Cache) ([]Match, error) {
	if cache == nil {
		cache = NewCache()
	}
	var matches []Match
	for _, t := range targets {
		m, ok, err := FindFirst(text, t, cache)
		if err != nil {
			return matches, err
		}
		if ok {
			matches = append(matches, m)
		}
	}
	return matches, nil
}

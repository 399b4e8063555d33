// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Forms posted by HTMX and JSON bodies from scripts go through the same
// parser so handlers read fields one way.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"spesedonut/internal/core"
	"spesedonut/internal/services"
)

const maxBodyBytes = 64 << 10

// IdempotencyHeader carries the client's key for a create request.
const IdempotencyHeader = "Idempotency-Key"

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	v, _ := p.Lookup(key)
	return v
}

// Lookup is Get that also reports whether the key was present.
func (p *RequestBodyParser) Lookup(key string) (string, bool) {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val)), true
		}
		return "", false
	}
	if p.formData != nil {
		if vals, ok := p.formData[key]; ok && len(vals) > 0 {
			return sanitizeInput(vals[0]), true
		}
	}
	return "", false
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// Cost reads key as an amount. JSON numbers are taken as currency units;
// strings and form values go through core.ParseCost.
func (p *RequestBodyParser) Cost(key string) (core.Money, bool, error) {
	if v, ok := p.jsonData[key].(float64); ok {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return core.Money{}, true, core.ErrInvalidCost
		}
		return core.FromUnits(v), true, nil
	}
	raw, ok := p.Lookup(key)
	if !ok {
		return core.Money{}, false, core.ErrInvalidCost
	}
	cost, err := core.ParseCost(raw)
	return cost, true, err
}

// ParseCreateInput reads name and cost for a new expense. Range checks are
// left to the service; only an unparseable cost fails here.
func ParseCreateInput(p *RequestBodyParser) (string, core.Money, error) {
	if err := p.Parse(); err != nil {
		return "", core.Money{}, fmt.Errorf("parse body: %w", err)
	}
	cost, _, err := p.Cost("cost")
	if err != nil {
		return "", core.Money{}, err
	}
	return p.Get("name"), cost, nil
}

// ParseUpdateInput reads the fields present in the body; absent fields stay nil.
func ParseUpdateInput(p *RequestBodyParser) (services.UpdateInput, error) {
	var in services.UpdateInput
	if err := p.Parse(); err != nil {
		return in, fmt.Errorf("parse body: %w", err)
	}
	if name, ok := p.Lookup("name"); ok {
		in.Name = &name
	}
	if cost, ok, err := p.Cost("cost"); ok {
		if err != nil {
			return in, err
		}
		in.Cost = &cost
	}
	return in, nil
}

// IdempotencyKey returns the key from the header, falling back to the form field.
func IdempotencyKey(r *http.Request, p *RequestBodyParser) string {
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key == "" && p != nil {
		key = p.Get("idempotency_key")
	}
	if len(key) > 128 {
		key = key[:128]
	}
	return key
}

// Package validation checks create payloads against embedded JSON Schemas
// (santhosh-tekuri/jsonschema) and reports every failing field at once.
package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names an embedded schema file without its extension.
type Schema string

const (
	Member         Schema = "member"
	Leader         Schema = "leader"
	Appointment    Schema = "appointment"
	Event          Schema = "event"
	Profile        Schema = "profile"
	Registration   Schema = "registration"
	Booking        Schema = "booking"
	SignUp         Schema = "signup"
	TenantSettings Schema = "tenant_settings"
)

// Error enumerates every failing field path with its messages.
type Error struct {
	Fields map[string][]string
}

func (e *Error) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// Add records a message for field.
func (e *Error) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Merge folds the fields of another *Error into e. Other errors are ignored.
func (e *Error) Merge(err error) {
	other, ok := err.(*Error)
	if !ok || other == nil {
		return
	}
	for field, messages := range other.Fields {
		for _, m := range messages {
			e.Add(field, m)
		}
	}
}

// OrNil returns e when it carries at least one field, nil otherwise.
func (e *Error) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Validator compiles embedded schemas on first use and caches them.
type Validator struct {
	mu    sync.RWMutex
	cache map[Schema]*jsonschema.Schema
}

// NewValidator returns a validator with an empty schema cache.
func NewValidator() *Validator {
	return &Validator{cache: make(map[Schema]*jsonschema.Schema)}
}

var std = NewValidator()

// Validate checks v against the named schema using the shared validator.
func Validate(schema Schema, v any) error {
	return std.Validate(schema, v)
}

// Validate marshals v to JSON and checks it against schema. It returns nil or
// a *Error; any other error means the schema itself is broken.
func (v *Validator) Validate(schema Schema, payload any) error {
	compiled, err := v.getOrCompile(schema)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var document any
	if err := dec.Decode(&document); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	verr := &Error{}
	if obj, ok := document.(map[string]any); ok {
		for _, field := range compiled.Required {
			if value, present := obj[field]; !present || value == nil {
				verr.Add(field, "is required")
			}
		}
	}

	if err := compiled.Validate(document); err != nil {
		var schemaErr *jsonschema.ValidationError
		if !errors.As(err, &schemaErr) {
			return fmt.Errorf("schema validation: %w", err)
		}
		collect(schemaErr, verr)
	}

	return verr.OrNil()
}

// collect flattens the leaf causes. Root-level required failures are already
// reported per field.
func collect(ve *jsonschema.ValidationError, out *Error) {
	if len(ve.Causes) > 0 {
		for _, cause := range ve.Causes {
			collect(cause, out)
		}
		return
	}

	if ve.InstanceLocation == "" && strings.HasSuffix(ve.KeywordLocation, "/required") {
		return
	}

	field := strings.ReplaceAll(strings.TrimPrefix(ve.InstanceLocation, "/"), "/", ".")
	if field == "" {
		field = "payload"
	}
	out.Add(field, ve.Message)
}

func (v *Validator) getOrCompile(schema Schema) (*jsonschema.Schema, error) {
	v.mu.RLock()
	compiled, ok := v.cache[schema]
	v.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if compiled, ok = v.cache[schema]; ok {
		return compiled, nil
	}

	def, err := schemaFS.ReadFile("schemas/" + string(schema) + ".json")
	if err != nil {
		return nil, fmt.Errorf("unknown schema %q: %w", schema, err)
	}

	key := "mem://schemas/" + string(schema) + ".json"
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(key, bytes.NewReader(def)); err != nil {
		return nil, fmt.Errorf("register schema %s: %w", schema, err)
	}

	compiled, err = compiler.Compile(key)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", schema, err)
	}

	v.cache[schema] = compiled
	return compiled, nil
}

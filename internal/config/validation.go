package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"imselect/internal/ime"
	"imselect/internal/keystroke"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "config.schema.json"

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap marks every validation failure as a configuration error.
func (e ValidationErrors) Unwrap() error { return ime.ErrConfiguration }

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// ValidateConfig checks c against the embedded JSON schema, then, in probe
// mode, checks the fields the schema cannot express: the chord must parse
// and the pattern must compile with one capturing group.
func ValidateConfig(c *Config) error {
	errs := validateSchema(c)

	// The chord and the pattern only matter on the probe path.
	if c.Mode == ModeProbe {
		if _, err := keystroke.Parse(c.SwitchKeys); err != nil {
			errs = append(errs, ValidationError{Field: "switch_keys", Message: err.Error()})
		}
		if _, err := c.Locator(); err != nil {
			errs = append(errs, ValidationError{Field: "probe.pattern", Message: err.Error()})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateSchema(c *Config) ValidationErrors {
	sch, err := compiledSchema()
	if err != nil {
		return ValidationErrors{{Field: "schema", Message: err.Error()}}
	}

	data, err := json.Marshal(c)
	if err != nil {
		return ValidationErrors{{Field: "schema", Message: err.Error()}}
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return ValidationErrors{{Field: "schema", Message: err.Error()}}
	}

	err = sch.Validate(instance)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return ValidationErrors{{Field: "schema", Message: err.Error()}}
	}

	var errs ValidationErrors
	collectLeaves(verr, &errs)
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

// collectLeaves flattens the schema error tree into one entry per failing
// instance location.
func collectLeaves(verr *jsonschema.ValidationError, out *ValidationErrors) {
	if len(verr.Causes) == 0 {
		*out = append(*out, ValidationError{
			Field:   fieldName(verr.InstanceLocation),
			Message: verr.Message,
		})
		return
	}
	for _, cause := range verr.Causes {
		collectLeaves(cause, out)
	}
}

// fieldName turns a JSON pointer such as "/verify/attempts" into
// "verify.attempts".
func fieldName(pointer string) string {
	name := strings.ReplaceAll(strings.TrimPrefix(pointer, "/"), "/", ".")
	if name == "" {
		return "config"
	}
	return name
}

// Package whitelist holds the closed catalog of remediations a host may be asked to run.
// Every action passes through Validate before it is stored; nothing outside the catalog
// can reach a host.
package whitelist

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
)

// Entry describes one permitted action type.
type Entry struct {
	ActionType  remediation.ActionType `json:"action_type"`
	Description string                 `json:"description"`
	Template    string                 `json:"command"`
	Schema      json.RawMessage        `json:"parameter_schema"`
	Defaults    remediation.Parameters `json:"defaults,omitempty"`

	compiled *jsonschema.Schema
}

// Whitelist validates requested actions against their entries.
type Whitelist struct {
	entries map[remediation.ActionType]*Entry
}

// Options configures the catalog.
type Options struct {
	// CustomScripts are the script names the custom action type may run.
	CustomScripts []string
}

// New compiles the catalog. It fails only on a malformed schema.
func New(opts Options) (*Whitelist, error) {
	w := &Whitelist{entries: make(map[remediation.ActionType]*Entry)}
	for _, def := range definitions(opts) {
		entry := def
		compiled, err := compile(entry.ActionType, entry.Schema)
		if err != nil {
			return nil, err
		}
		entry.compiled = compiled
		w.entries[entry.ActionType] = &entry
	}
	return w, nil
}

func compile(actionType remediation.ActionType, schema json.RawMessage) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://fleetfix.schemas.local/actions/%s.schema.json", actionType)
	if err := c.AddResource(url, strings.NewReader(string(schema))); err != nil {
		return nil, fmt.Errorf("whitelist: add schema for %s: %w", actionType, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("whitelist: compile schema for %s: %w", actionType, err)
	}
	return compiled, nil
}

// Validate checks params against the template of actionType and returns the resolved
// command. Any failure is a *remediation.ValidationError.
func (w *Whitelist) Validate(actionType remediation.ActionType, params remediation.Parameters) (*remediation.ValidatedCommand, error) {
	entry, ok := w.entries[actionType]
	if !ok {
		return nil, &remediation.ValidationError{ActionType: actionType, Reason: "action type is not whitelisted"}
	}

	normalized, err := params.Normalize()
	if err != nil {
		return nil, &remediation.ValidationError{ActionType: actionType, Reason: "parameters are not a JSON object", Details: []string{err.Error()}}
	}
	for k, v := range entry.Defaults {
		if _, set := normalized[k]; !set {
			normalized[k] = v
		}
	}

	if err := entry.compiled.Validate(map[string]interface{}(normalized)); err != nil {
		return nil, &remediation.ValidationError{
			ActionType: actionType,
			Reason:     "parameters do not match the whitelisted template",
			Details:    schemaDetails(err),
		}
	}

	return &remediation.ValidatedCommand{
		ActionType: actionType,
		Template:   entry.Template,
		Parameters: normalized,
	}, nil
}

func schemaDetails(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var details []string
	for _, be := range ve.BasicOutput().Errors {
		if be.Error == "" || strings.HasPrefix(be.Error, "doesn't validate with") {
			continue
		}
		loc := be.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		details = append(details, loc+": "+be.Error)
	}
	if len(details) == 0 {
		details = append(details, ve.Error())
	}
	sort.Strings(details)
	return details
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Render re-validates stored parameters against the current catalog and fills the
// template's placeholders. Parameters persisted under an older catalog that no longer
// validate, or a placeholder without a scalar value, fail with a *remediation.ValidationError.
func (w *Whitelist) Render(actionType remediation.ActionType, params remediation.Parameters) (*remediation.ValidatedCommand, error) {
	cmd, err := w.Validate(actionType, params)
	if err != nil {
		return nil, err
	}

	var missing []string
	rendered := placeholder.ReplaceAllStringFunc(cmd.Template, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		v, ok := renderValue(cmd.Parameters[key])
		if !ok {
			missing = append(missing, key)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &remediation.ValidationError{
			ActionType: actionType,
			Reason:     "template placeholders have no value",
			Details:    missing,
		}
	}
	cmd.Rendered = rendered
	return cmd, nil
}

func renderValue(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := renderValue(item)
			if !ok {
				return "", false
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, " "), true
	}
	return "", false
}

// Entries lists the catalog in action-type order.
func (w *Whitelist) Entries() []Entry {
	out := make([]Entry, 0, len(w.entries))
	for _, at := range remediation.ActionTypes {
		if e, ok := w.entries[at]; ok {
			out = append(out, *e)
		}
	}
	return out
}

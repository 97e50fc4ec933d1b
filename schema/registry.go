// Package schema validates OCPP-J payloads against the per-version JSON
// Schema documents published with the protocol. Schemas are an input: the
// registry compiles whatever documents the host points it at.
package schema

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"github.com/viant/afs"
	"github.com/voltgrid/ocppj"
)

// Direction selects the request or response schema of an action.
type Direction int

const (
	Request Direction = iota
	Response
)

const responseSuffix = "Response"

// Registry holds compiled schemas keyed by version, action and direction.
// Loading happens at configuration time; validation is read-only and safe
// for concurrent use.
type Registry struct {
	fs      afs.Service
	mux     sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		fs:      afs.New(),
		schemas: map[string]*jsonschema.Schema{},
	}
}

// Load compiles every *.json document under baseURL for the given protocol
// version (e.g. "2.0.1"). Documents follow the OCPP naming convention:
// <Action>.json for requests, <Action>Response.json for responses.
func (r *Registry) Load(ctx context.Context, version string, baseURL string) error {
	objects, err := r.fs.List(ctx, baseURL)
	if err != nil {
		return fmt.Errorf("failed to list schemas at %v: %w", baseURL, err)
	}
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := r.fs.DownloadWithURL(ctx, object.URL())
		if err != nil {
			return fmt.Errorf("failed to download schema %v: %w", object.URL(), err)
		}
		name := strings.TrimSuffix(object.Name(), ".json")
		if err := r.Add(version, name, data); err != nil {
			return err
		}
	}
	return nil
}

// Add compiles a single schema document under version. Name is the action
// name, with the "Response" suffix for response schemas.
func (r *Registry) Add(version, name string, document []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(document))
	if err != nil {
		return fmt.Errorf("schema %v/%v is not valid JSON: %w", version, name, err)
	}
	resource := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resource, doc); err != nil {
		return fmt.Errorf("failed to add schema %v/%v: %w", version, name, err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return fmt.Errorf("failed to compile schema %v/%v: %w", version, name, err)
	}
	r.mux.Lock()
	r.schemas[version+"/"+name] = compiled
	r.mux.Unlock()
	return nil
}

func (r *Registry) schema(version, action string, direction Direction) (*jsonschema.Schema, bool) {
	key := version + "/" + action
	if direction == Response {
		key += responseSuffix
	}
	r.mux.RLock()
	defer r.mux.RUnlock()
	compiled, ok := r.schemas[key]
	return compiled, ok
}

// Validate checks a raw wire payload (lowerCamelCase keys) against the
// schema registered for action in the given version and direction. A
// violation is returned as *ocppj.Error carrying the matching constraint
// code; a missing schema surfaces as NotSupported.
func (r *Registry) Validate(version, action string, direction Direction, payload []byte) error {
	compiled, ok := r.schema(version, action, direction)
	if !ok {
		return ocppj.NewNotSupported(fmt.Sprintf("no schema for action %q in version %v", action, version))
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return ocppj.NewFormationViolation(fmt.Sprintf("payload is not valid JSON: %v", err))
	}
	if err := compiled.Validate(value); err != nil {
		return violationError(err)
	}
	return nil
}

// violationError maps a schema validation failure to the OCPP-J constraint
// taxonomy by inspecting the failed keyword.
func violationError(err error) *ocppj.Error {
	validationErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return ocppj.NewFormationViolation(err.Error())
	}
	code := ocppj.CodeFormationViolation
	walkCauses(validationErr, func(leaf *jsonschema.ValidationError) bool {
		switch leaf.ErrorKind.(type) {
		case *kind.Type:
			code = ocppj.CodeTypeConstraintViolation
		case *kind.Required:
			code = ocppj.CodeOccurrenceConstraintViolation
		case *kind.Enum, *kind.Minimum, *kind.Maximum, *kind.MinLength, *kind.MaxLength, *kind.Pattern:
			code = ocppj.CodePropertyConstraintViolation
		default:
			return true
		}
		return false
	})
	return ocppj.NewError(code, err.Error())
}

func walkCauses(err *jsonschema.ValidationError, visit func(*jsonschema.ValidationError) bool) bool {
	if len(err.Causes) == 0 {
		return visit(err)
	}
	for _, cause := range err.Causes {
		if !walkCauses(cause, visit) {
			return false
		}
	}
	return true
}

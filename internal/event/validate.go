package event

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ShapeError indicates an event whose fields do not match what its type
// requires.
type ShapeError struct {
	Raw json.RawMessage
	Err error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("malformed event: %v", e.Err)
}

func (e *ShapeError) Unwrap() error { return e.Err }

// eventSchema requires the discriminant on every event and the payload
// fields each reducer relies on.
const eventSchema = `{
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"type": "string", "minLength": 1},
    "jsTimestamp": {"type": "integer"},
    "seq": {"type": "integer"},
    "kind": {"type": "string"}
  },
  "allOf": [
    {
      "if": {"properties": {"type": {"const": "login"}}},
      "then": {"required": ["participant_id"], "properties": {"participant_id": {"type": "string", "minLength": 1}}}
    },
    {
      "if": {"properties": {"type": {"const": "tapKey"}}},
      "then": {"required": ["key"], "properties": {"key": {"type": "string", "minLength": 1}}}
    },
    {
      "if": {"properties": {"type": {"const": "tapSuggestion"}}},
      "then": {"required": ["slot"], "properties": {"slot": {"type": "integer", "minimum": 0}}}
    },
    {
      "if": {"properties": {"type": {"const": "setScreen"}}},
      "then": {"required": ["screen"], "properties": {"screen": {"type": "integer"}}}
    },
    {
      "if": {"properties": {"type": {"const": "controlledInputChanged"}}},
      "then": {"required": ["name"]}
    },
    {
      "if": {"properties": {"type": {"const": "setupTrial"}}},
      "then": {"required": ["name"]}
    },
    {
      "if": {"properties": {"type": {"const": "backendReply"}}},
      "then": {
        "required": ["msg"],
        "properties": {"msg": {"type": "object", "required": ["request_id"], "properties": {"request_id": {"type": "integer"}}}}
      }
    },
    {
      "if": {"properties": {"type": {"const": "rpc"}}},
      "then": {"required": ["rpc"], "properties": {"rpc": {"type": "object", "required": ["method"]}}}
    }
  ]
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// Validate checks raw JSON against the event schema. It returns a
// *ShapeError on failure.
func Validate(raw json.RawMessage) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &ShapeError{Raw: raw, Err: fmt.Errorf("invalid JSON: %w", err)}
	}

	sch, err := schema()
	if err != nil {
		return fmt.Errorf("compile event schema: %w", err)
	}

	if err := sch.Validate(parsed); err != nil {
		return &ShapeError{Raw: raw, Err: err}
	}
	return nil
}

// ValidateEvent checks an already-decoded event.
func ValidateEvent(ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return Validate(raw)
}

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		var def any
		if err := json.Unmarshal([]byte(eventSchema), &def); err != nil {
			compileErr = fmt.Errorf("parse schema definition: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		const url = "schema://event.json"
		if err := c.AddResource(url, def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(url)
	})
	return compiled, compileErr
}

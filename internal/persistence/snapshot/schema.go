package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// TaskValidator checks exported task states against the JSON schema shipped
// in schemas/taskstate.schema.json.
type TaskValidator struct {
	schema *jsonschema.Schema
}

func NewTaskValidator(schemaPath string) (*TaskValidator, error) {
	s, err := jsonschema.Compile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", schemaPath, err)
	}
	return &TaskValidator{schema: s}, nil
}

func (v *TaskValidator) Validate(t TaskStateV1) error {
	if err := t.Check(); err != nil {
		return err
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("task %s: %w", t.ID, err)
	}
	return nil
}

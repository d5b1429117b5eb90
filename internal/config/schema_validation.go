package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	devdockschema "github.com/Paintersrp/devdock/schema"
)

const schemaURL = "processes.v1.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, bytes.NewReader(devdockschema.ProcessesV1Schema)); err != nil {
		return nil, fmt.Errorf("add %s: %w", schemaURL, err)
	}
	return compiler.Compile(schemaURL)
})

// SchemaProblem is one schema violation, located by record.
type SchemaProblem struct {
	// Record is the index of the offending record, or -1 when the problem
	// concerns the document as a whole.
	Record  int
	Name    string
	Field   string
	Message string
}

func (p SchemaProblem) String() string {
	var where string
	switch {
	case p.Record < 0:
		where = "document"
	case p.Name != "":
		where = fmt.Sprintf("record %d (%s)", p.Record, p.Name)
	default:
		where = fmt.Sprintf("record %d", p.Record)
	}
	if p.Field != "" {
		where += " " + p.Field
	}
	return where + ": " + p.Message
}

// SchemaError reports every violation found in a configuration document.
type SchemaError struct {
	Problems []SchemaProblem
}

func (e *SchemaError) Error() string {
	lines := make([]string, 0, len(e.Problems)+1)
	lines = append(lines, "schema validation failed:")
	for _, p := range e.Problems {
		lines = append(lines, "  - "+p.String())
	}
	return strings.Join(lines, "\n")
}

func validateAgainstSchema(doc any) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("load processes schema: %w", err)
	}
	// YAML decodes to Go ints and string-keyed maps; the validator wants
	// the JSON shapes.
	records, err := asJSONValue(doc)
	if err != nil {
		return fmt.Errorf("prepare document for schema validation: %w", err)
	}

	verr := schema.Validate(records)
	if verr == nil {
		return nil
	}
	tree, ok := verr.(*jsonschema.ValidationError)
	if !ok {
		return fmt.Errorf("schema validation failed: %w", verr)
	}
	problems := collectProblems(tree, records, nil)
	if len(problems) == 0 {
		problems = []SchemaProblem{{Record: -1, Message: tree.Message}}
	}
	return &SchemaError{Problems: problems}
}

func asJSONValue(doc any) (any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var out any
	if err := decoder.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// collectProblems flattens the validator's cause tree into its leaves.
func collectProblems(err *jsonschema.ValidationError, records any, out []SchemaProblem) []SchemaProblem {
	if len(err.Causes) > 0 {
		for _, cause := range err.Causes {
			out = collectProblems(cause, records, out)
		}
		return out
	}
	return append(out, locate(err.InstanceLocation, records, err.Message))
}

// locate turns a JSON pointer such as /2/args/0 into a record index, the
// record's name and a dotted field path.
func locate(pointer string, records any, message string) SchemaProblem {
	segments := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	problem := SchemaProblem{Record: -1, Message: message}
	if len(segments) == 0 || segments[0] == "" {
		return problem
	}
	index, err := strconv.Atoi(segments[0])
	if err != nil {
		return problem
	}
	problem.Record = index
	if list, ok := records.([]any); ok && index < len(list) {
		if record, ok := list[index].(map[string]any); ok {
			problem.Name, _ = record["name"].(string)
		}
	}

	var field strings.Builder
	for _, segment := range segments[1:] {
		segment = strings.NewReplacer("~1", "/", "~0", "~").Replace(segment)
		if _, err := strconv.Atoi(segment); err == nil {
			fmt.Fprintf(&field, "[%s]", segment)
			continue
		}
		if field.Len() > 0 {
			field.WriteByte('.')
		}
		field.WriteString(segment)
	}
	problem.Field = field.String()
	return problem
}

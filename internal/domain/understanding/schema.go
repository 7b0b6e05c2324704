package understanding

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/GriffinCanCode/PageSense/backend/internal/shared/llmjson"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	zonesSchema      = mustSchema("zones.json")
	selectorsSchema  = mustSchema("selectors.json")
	strategiesSchema = mustSchema("strategies.json")
)

func mustSchema(name string) *jsonschema.Schema {
	data, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("read schema %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		panic(fmt.Sprintf("load schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

// decodeValidated repairs model output, checks it against schema, then
// decodes it into out
func decodeValidated(raw string, schema *jsonschema.Schema, out any) (llmjson.Stage, error) {
	res := llmjson.Parse(raw)
	if !res.OK() {
		return res.Stage, res.Err
	}
	if err := schema.Validate(res.Value); err != nil {
		return res.Stage, fmt.Errorf("output does not match schema: %w", err)
	}
	data, err := sonic.ConfigStd.Marshal(res.Value)
	if err != nil {
		return res.Stage, fmt.Errorf("re-encode output: %w", err)
	}
	if err := sonic.ConfigStd.Unmarshal(data, out); err != nil {
		return res.Stage, fmt.Errorf("decode output: %w", err)
	}
	return res.Stage, nil
}

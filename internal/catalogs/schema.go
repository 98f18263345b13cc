package catalogs

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "https://futdrill.ai/schemas/"

var (
	schemaOnce sync.Once
	schemaErr  error
	mapSchema  *jsonschema.Schema
	listSchema *jsonschema.Schema
)

func compileSchemas() error {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft7
		for _, name := range []string{"map.schema.json", "playlist.schema.json"} {
			raw, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				schemaErr = err
				return
			}
			if err := c.AddResource(schemaBase+name, bytes.NewReader(raw)); err != nil {
				schemaErr = fmt.Errorf("%s: %w", name, err)
				return
			}
		}
		if mapSchema, schemaErr = c.Compile(schemaBase + "map.schema.json"); schemaErr != nil {
			return
		}
		listSchema, schemaErr = c.Compile(schemaBase + "playlist.schema.json")
	})
	return schemaErr
}

// validateYAML checks a YAML document against s. The document goes through
// JSON first so the validator sees json.Number and string-keyed maps only.
func validateYAML(s *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return s.Validate(v)
}

// decodeStrict unmarshals raw into out and rejects unknown keys.
func decodeStrict(raw []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(out)
}

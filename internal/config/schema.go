package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Schema returns the JSON Schema of the config file.
func Schema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&Config{})
	schema.Title = "kleinbot config"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal schema")
	}
	return data, nil
}

package config

import (
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/filecmd/pkg/adapter/filecmd"
)

// SchemaID is the $id of the configuration schema.
const SchemaID = "https://github.com/marmos91/filecmd/config.schema.json"

// durationPattern matches the strings time.ParseDuration accepts, which is
// how viper decodes duration settings.
const durationPattern = `^-?([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

// Schema returns the JSON schema of the config file.
//
// Keys follow the mapstructure tags viper decodes. Durations are strings
// such as "30s", and settings validated with oneof list their accepted
// values as an enum.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "mapstructure",
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(time.Duration(0)) {
				return &jsonschema.Schema{Type: "string", Pattern: durationPattern}
			}
			return nil
		},
	}

	schema := reflector.Reflect(&Config{})
	schema.ID = SchemaID
	schema.Title = "filecmd configuration"
	schema.Description = "Configuration of the filecmd file command server"

	setEnum(schema, []string{"adapter", "discipline"}, filecmd.DisciplineThread, filecmd.DisciplineProcess)
	setEnum(schema, []string{"store", "type"}, "filesystem", "memory", "s3", "badger")
	setEnum(schema, []string{"logging", "format"}, "text", "json")
	setEnum(schema, []string{"logging", "level"}, "DEBUG", "INFO", "WARN", "ERROR", "debug", "info", "warn", "error")

	return schema
}

// property walks path through nested object properties. Returns nil if a key
// is missing.
func property(schema *jsonschema.Schema, path []string) *jsonschema.Schema {
	for _, key := range path {
		if schema == nil || schema.Properties == nil {
			return nil
		}
		schema, _ = schema.Properties.Get(key)
	}
	return schema
}

func setEnum(schema *jsonschema.Schema, path []string, values ...string) {
	p := property(schema, path)
	if p == nil {
		return
	}
	p.Enum = make([]any, len(values))
	for i, v := range values {
		p.Enum[i] = v
	}
}

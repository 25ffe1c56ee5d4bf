// Package schema generates JSON Schemas for the configuration file, the
// credential seeds file and campaign reports.
package schema

import (
	"encoding/json"
	"path"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/invopop/jsonschema"

	"github.com/your-org/credguard/internal/config"
	"github.com/your-org/credguard/internal/domain"
	"github.com/your-org/credguard/internal/service/credstore"
)

// SchemaType selects the document to describe.
type SchemaType string

const (
	SchemaTypeConfig SchemaType = "config"
	SchemaTypeSeeds  SchemaType = "seeds"
	SchemaTypeReport SchemaType = "report"
)

const schemaBaseURL = "https://github.com/your-org/credguard/schemas/"

// SeedsDocument is the layout of a credential seeds file.
type SeedsDocument struct {
	Credentials []credstore.Seed `yaml:"credentials" jsonschema:"required"`
}

// Generator generates JSON schemas for credguard files.
type Generator struct {
	// Each document is keyed by the tag its decoder reads: viper decodes
	// mapstructure, the seeds loader decodes yaml, reports are JSON.
	config *jsonschema.Reflector
	seeds  *jsonschema.Reflector
	report *jsonschema.Reflector
}

// NewGenerator creates a new schema generator.
func NewGenerator() *Generator {
	return &Generator{
		config: newReflector("mapstructure"),
		seeds:  newReflector("yaml"),
		report: newReflector("json"),
	}
}

func newReflector(tag string) *jsonschema.Reflector {
	return &jsonschema.Reflector{
		FieldNameTag:               tag,
		RequiredFromJSONSchemaTags: true,
		Namer:                      definitionName,
		Mapper:                     mapType,
	}
}

// definitionName snake-cases type names and qualifies the ones several
// packages export (Config, Params) with their package.
func definitionName(t reflect.Type) string {
	name := toSnakeCase(t.Name())
	pkg := path.Base(t.PkgPath())
	if t.Name() == "Params" || (t.Name() == "Config" && pkg != "config") {
		return pkg + "_" + name
	}
	return name
}

func mapType(t reflect.Type) *jsonschema.Schema {
	switch t {
	case reflect.TypeOf(time.Duration(0)):
		return &jsonschema.Schema{
			Type:        "string",
			Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
			Description: "Duration string (e.g., '30s', '5m', '1h')",
			Examples:    []interface{}{"5s", "3s", "200ms", "15m"},
		}
	case reflect.TypeOf(domain.Identity(0)):
		return &jsonschema.Schema{
			Type:        "integer",
			Description: "Numeric user identity",
		}
	}
	return nil
}

// Generate returns the indented schema. Unknown types fall back to config.
func (g *Generator) Generate(schemaType SchemaType) ([]byte, error) {
	var s *jsonschema.Schema

	switch schemaType {
	case SchemaTypeSeeds:
		s = g.seeds.Reflect(&SeedsDocument{})
		s.Title = "Credguard Credential Seeds"
		s.Description = "Credential seeds. Each entry carries either a plaintext secret or a\n" +
			"precomputed hex salt and digest. The file is reloaded on change when watching is enabled."
		s.Extras = map[string]interface{}{"x-runtime-updatable": true}
		s.Examples = []interface{}{
			map[string]interface{}{
				"credentials": []interface{}{
					map[string]interface{}{"identity": 1001, "secret": "12345678"},
					map[string]interface{}{"identity": 1002, "secret": "87654321"},
				},
			},
		}
	case SchemaTypeReport:
		s = g.report.Reflect(&domain.Report{})
		s.Title = "Credguard Timing Campaign Report"
		s.Description = "Per-identity median latencies, the anomaly analysis and search outcomes of one campaign."
	default:
		schemaType = SchemaTypeConfig
		s = g.config.Reflect(&config.Config{})
		s.Title = "Credguard Configuration"
		s.Description = "Configuration for the credguard verifier service and the timing probe.\n\n" +
			"Every key can be overridden with an environment variable prefixed " + config.EnvPrefix + "_,\n" +
			"with dots replaced by underscores, e.g. " + config.EnvPrefix + "_VERIFIER_MODE=legacy."
	}
	s.ID = jsonschema.ID(schemaBaseURL + string(schemaType) + ".schema.json")

	return json.MarshalIndent(s, "", "  ")
}

// toSnakeCase converts PascalCase to snake_case, keeping acronyms together:
// HTTPServerConfig -> http_server_config, TargetURL -> target_url.
func toSnakeCase(s string) string {
	runes := []rune(s)

	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			endsAcronym := unicode.IsUpper(runes[i-1]) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || endsAcronym {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// GetAvailableSchemas returns list of available schema types.
func GetAvailableSchemas() []SchemaType {
	return []SchemaType{SchemaTypeConfig, SchemaTypeSeeds, SchemaTypeReport}
}

// ParseSchemaType parses a string to SchemaType.
func ParseSchemaType(s string) (SchemaType, bool) {
	st := SchemaType(strings.ToLower(s))
	switch st {
	case SchemaTypeConfig, SchemaTypeSeeds, SchemaTypeReport:
		return st, true
	}
	return "", false
}

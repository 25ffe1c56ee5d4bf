// Package help renders command usage, including the environment variables
// derived from the configuration struct.
package help

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// EnvVar documents one environment override.
type EnvVar struct {
	Name        string // e.g. CREDGUARD_VERIFIER_MODE
	ConfigPath  string // e.g. verifier.mode
	Type        string
	Description string
	Default     string
}

// EnvVars walks the mapstructure tags of cfg and returns one entry per leaf
// setting, sorted by name. Slices of structs are listed as a whole.
func EnvVars(prefix string, cfg any) []EnvVar {
	var vars []EnvVar
	walk(reflect.TypeOf(cfg), "", func(path string, t reflect.Type, tag reflect.StructTag) {
		name := strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
		if prefix != "" {
			name = prefix + "_" + name
		}
		schema := tag.Get("jsonschema")
		vars = append(vars, EnvVar{
			Name:        name,
			ConfigPath:  path,
			Type:        typeName(t),
			Description: tagValue(schema, "description"),
			Default:     tagValue(schema, "default"),
		})
	})

	slices.SortFunc(vars, func(a, b EnvVar) int { return strings.Compare(a.Name, b.Name) })
	return vars
}

func walk(t reflect.Type, prefix string, leaf func(string, reflect.Type, reflect.StructTag)) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key := f.Tag.Get("mapstructure")
		if !f.IsExported() || key == "" || key == "-" {
			continue
		}

		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		ft := f.Type
		if ft.Kind() == reflect.Struct && ft.PkgPath() != "time" {
			walk(ft, path, leaf)
			continue
		}
		leaf(path, ft, f.Tag)
	}
}

// tagValue extracts key=value from a jsonschema tag. Repeated keys (enum)
// are joined with "|". Escaped commas stay in the value.
func tagValue(tag, key string) string {
	const escaped = "\\,"
	var values []string
	for _, part := range strings.Split(strings.ReplaceAll(tag, escaped, "\x00"), ",") {
		part = strings.ReplaceAll(part, "\x00", ",")
		if v, ok := strings.CutPrefix(strings.TrimSpace(part), key+"="); ok {
			values = append(values, v)
		}
	}
	return strings.Join(values, "|")
}

func typeName(t reflect.Type) string {
	switch {
	case t.String() == "time.Duration":
		return "duration"
	case t.Kind() == reflect.Slice:
		if t.Elem().Kind() == reflect.Struct {
			return "list"
		}
		return "[]" + typeName(t.Elem())
	case t.Kind() == reflect.Map:
		return "map"
	case t.Kind() >= reflect.Int && t.Kind() <= reflect.Int64:
		return "int"
	case t.Kind() >= reflect.Uint && t.Kind() <= reflect.Uint64:
		return "uint"
	case t.Kind() == reflect.Float32, t.Kind() == reflect.Float64:
		return "float"
	default:
		return t.Kind().String()
	}
}

// FormatEnvVars renders vars grouped by top-level section.
func FormatEnvVars(vars []EnvVar) string {
	var (
		sb      strings.Builder
		section string
	)

	sorted := slices.Clone(vars)
	slices.SortStableFunc(sorted, func(a, b EnvVar) int {
		return strings.Compare(topLevel(a.ConfigPath), topLevel(b.ConfigPath))
	})

	for _, v := range sorted {
		if s := topLevel(v.ConfigPath); s != section {
			section = s
			fmt.Fprintf(&sb, "\n  [%s]\n", section)
		}
		fmt.Fprintf(&sb, "    %-48s %-9s", v.Name, v.Type)
		if v.Description != "" {
			sb.WriteString(" " + v.Description)
		}
		if v.Default != "" {
			fmt.Fprintf(&sb, " (default %s)", v.Default)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func topLevel(path string) string {
	section, _, _ := strings.Cut(path, ".")
	return section
}

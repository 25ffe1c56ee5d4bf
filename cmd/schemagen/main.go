// Command schemagen prints or writes the JSON Schemas for credguard files.
//
//	schemagen config            # print the config schema
//	schemagen -out schemas      # write every schema to schemas/<type>.schema.json
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/your-org/credguard/internal/schema"
)

func main() {
	outDir := flag.String("out", "", "Write all schemas into this directory")
	flag.Parse()

	gen := schema.NewGenerator()

	if *outDir != "" {
		if err := writeAll(gen, *outDir); err != nil {
			fmt.Fprintf(os.Stderr, "schemagen: %v\n", err)
			os.Exit(1)
		}
		return
	}

	name := flag.Arg(0)
	if name == "" {
		name = string(schema.SchemaTypeConfig)
	}
	st, ok := schema.ParseSchemaType(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "schemagen: unknown schema type %q (want one of %v)\n", name, schema.GetAvailableSchemas())
		os.Exit(1)
	}

	data, err := gen.Generate(st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "schemagen: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func writeAll(gen *schema.Generator, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, st := range schema.GetAvailableSchemas() {
		data, err := gen.Generate(st)
		if err != nil {
			return fmt.Errorf("%s: %w", st, err)
		}
		path := filepath.Join(dir, string(st)+".schema.json")
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Command generate-schema writes the JSON schema of the filecmd config file,
// for editor completion and validation of config.yaml.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/marmos91/filecmd/pkg/config"
)

func main() {
	output := flag.String("o", "config.schema.json", "file to write the schema to (- for stdout)")
	flag.Parse()

	data, err := json.MarshalIndent(config.Schema(), "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling schema: %v\n", err)
		os.Exit(1)
	}
	data = append(data, '\n')

	if *output == "-" {
		_, _ = os.Stdout.Write(data)
		return
	}

	if err := os.WriteFile(*output, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("JSON schema %s written to %s\n", config.SchemaID, *output)
}

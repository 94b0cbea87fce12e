// Command schema-generator writes the JSON schema of homed.yml so editors
// can validate configuration files.
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/grovetools/homed/config"
	"github.com/sirupsen/logrus"
)

func main() {
	out := flag.String("o", filepath.Join("schema", "homed.schema.json"), "output path")
	flag.Parse()

	schemaBytes, err := config.GenerateSchema()
	if err != nil {
		logrus.Fatalf("Error generating schema: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
		logrus.Fatalf("Error creating schema directory: %v", err)
	}
	if err := os.WriteFile(*out, append(schemaBytes, '\n'), 0644); err != nil {
		logrus.Fatalf("Error writing schema file: %v", err)
	}

	logrus.Infof("Generated schema at %s", *out)
}

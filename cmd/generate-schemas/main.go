package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fap-edu/fap-ledger-go/pkg/contract"
)

// artifact is the subset of a Hardhat or Foundry build artifact we read.
type artifact struct {
	ContractName string                `json:"contractName"`
	ABI          []contract.Descriptor `json:"abi"`
}

func main() {
	artifactPath := flag.String("artifact", "", "Hardhat or Foundry artifact JSON")
	out := flag.String("out", "", "schema file name under pkg/contract/abis, e.g. credential_management.json")
	name := flag.String("contract", "", "contract name; defaults to the artifact's contractName")
	version := flag.String("version", "1.0.0", "schema version")
	flag.Parse()

	if *artifactPath == "" || *out == "" {
		log.Fatal("both -artifact and -out are required")
	}

	raw, err := os.ReadFile(*artifactPath)
	if err != nil {
		log.Fatalf("Failed to read artifact: %v", err)
	}
	schema, err := convert(raw, *name, *version)
	if err != nil {
		log.Fatalf("Failed to convert artifact: %v", err)
	}

	root, err := moduleRoot()
	if err != nil {
		log.Fatalf("Failed to locate module root: %v", err)
	}

	outPath := filepath.Join(root, "pkg", "contract", "abis", *out)
	if err := os.WriteFile(outPath, schema, 0o600); err != nil {
		log.Fatalf("Failed to write schema: %v", err)
	}
	log.Printf("Wrote %s", outPath)
}

// convert keeps the functions and events of an artifact ABI and wraps them in
// a versioned schema. The result must load as a contract.Registry.
func convert(raw []byte, name, version string) ([]byte, error) {
	var a artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifact JSON: %w", err)
	}
	if name == "" {
		name = a.ContractName
	}
	if name == "" {
		return nil, fmt.Errorf("contract name is required")
	}

	s := contract.Schema{Contract: name, Version: version}
	for _, d := range a.ABI {
		if d.Kind == "function" || d.Kind == "event" {
			s.Entries = append(s.Entries, d)
		}
	}
	if len(s.Entries) == 0 {
		return nil, fmt.Errorf("artifact %s has no functions or events", name)
	}
	if _, err := contract.NewRegistry(s); err != nil {
		return nil, err
	}

	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func moduleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, statErr := os.Stat(filepath.Join(dir, "go.mod")); statErr == nil {
			return dir, nil
		}
		next := filepath.Dir(dir)
		if next == dir {
			return "", fmt.Errorf("go.mod not found from %q", dir)
		}
		dir = next
	}
}

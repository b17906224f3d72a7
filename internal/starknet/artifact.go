package starknet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrArtifactNotBuilt is returned when the compiled contract files are missing.
var ErrArtifactNotBuilt = errors.New("compiled contract not found (run `scarb build` first)")

// CompiledContract is a Sierra class and its CASM compilation as produced by
// scarb under target/dev.
type CompiledContract struct {
	Name       string
	Package    string
	SierraPath string
	CasmPath   string
	Sierra     json.RawMessage
	Casm       json.RawMessage
	ABI        *ABI
}

// LoadCompiledContract reads <dir>/<pkg>_<name>.contract_class.json and the
// matching .compiled_contract_class.json.
func LoadCompiledContract(dir, pkg, name string) (*CompiledContract, error) {
	base := filepath.Join(dir, fmt.Sprintf("%s_%s", pkg, name))
	c := &CompiledContract{
		Name:       name,
		Package:    pkg,
		SierraPath: base + ".contract_class.json",
		CasmPath:   base + ".compiled_contract_class.json",
	}

	var err error
	if c.Sierra, err = readArtifact(c.SierraPath); err != nil {
		return nil, err
	}
	if c.Casm, err = readArtifact(c.CasmPath); err != nil {
		return nil, err
	}

	var sierra struct {
		ABI json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(c.Sierra, &sierra); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", c.SierraPath, err)
	}
	if len(sierra.ABI) > 0 {
		if c.ABI, err = ParseABI(sierra.ABI); err != nil {
			return nil, fmt.Errorf("%s: %w", c.SierraPath, err)
		}
	}

	return c, nil
}

func readArtifact(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotBuilt, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s is not valid JSON", path)
	}
	return data, nil
}

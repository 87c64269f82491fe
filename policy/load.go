package policy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a policy file.
type File struct {
	Rules []Rule `yaml:"rules" toml:"rules"`
}

// Load reads a rule table from a YAML (.yaml, .yml) or TOML (.toml) file.
func Load(filename string) (*Table, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".toml":
		return ParseTOML(data)
	default:
		return nil, fmt.Errorf("unsupported policy file extension %q", ext)
	}
}

// ParseYAML decodes and compiles a YAML rule table. Unknown keys are errors.
func ParseYAML(data []byte) (*Table, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing policy yaml: %w", err)
	}
	return NewTable(f.Rules)
}

// ParseTOML decodes and compiles a TOML rule table. Unknown keys are errors.
func ParseTOML(data []byte) (*Table, error) {
	var f File
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("parsing policy toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parsing policy toml: unknown key %q", undecoded[0].String())
	}
	return NewTable(f.Rules)
}

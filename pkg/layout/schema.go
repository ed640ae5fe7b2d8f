// Package layout compiles declarative YAML layout documents into fbreak
// parser combinators, so binary formats can be described in data files
// instead of Go code.
//
// A layout document names a root addressing mode and an ordered field list:
//
//	meta:
//	  id: sensor_frame
//	  mode: byte
//	fields:
//	  - label: magic
//	    type: const
//	    contents: "SF"
//	  - label: count
//	    type: byte
//	    translate: "int(value[0])"
//	  - label: reading
//	    type: bytes
//	    size: 4
//	    repeat: count
package layout

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Schema is a parsed layout document.
type Schema struct {
	Meta   Meta       `yaml:"meta"`
	Fields []FieldDef `yaml:"fields"`
}

// Meta carries document-level settings.
type Meta struct {
	ID   string `yaml:"id"`
	Mode string `yaml:"mode"`
	Doc  string `yaml:"doc,omitempty"`
}

// FieldDef describes one field of the layout. Exactly the keys relevant to
// its type are consulted; nested containers carry their own field lists.
type FieldDef struct {
	Label     string     `yaml:"label,omitempty"`
	Type      string     `yaml:"type"`
	Size      any        `yaml:"size,omitempty"` // int, or the key of an already parsed field
	At        *int64     `yaml:"at,omitempty"`
	Mode      string     `yaml:"mode,omitempty"`
	Relative  *bool      `yaml:"relative,omitempty"`
	Optional  bool       `yaml:"optional,omitempty"`
	Repeat    any        `yaml:"repeat,omitempty"` // int, or the key of an already parsed field
	Array     any        `yaml:"array,omitempty"`
	Encoding  string     `yaml:"encoding,omitempty"`
	Contents  string     `yaml:"contents,omitempty"`
	Translate string     `yaml:"translate,omitempty"`
	Fields    []FieldDef `yaml:"fields,omitempty"`
}

// Load parses a layout document from YAML bytes.
func Load(data []byte) (*Schema, error) {
	schema := &Schema{}
	if err := yaml.Unmarshal(data, schema); err != nil {
		return nil, fmt.Errorf("parsing layout YAML: %w", err)
	}
	if len(schema.Fields) == 0 {
		return nil, fmt.Errorf("layout %q declares no fields", schema.Meta.ID)
	}
	return schema, nil
}

// LoadFile parses a layout document from a file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading layout file: %w", err)
	}
	schema, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return schema, nil
}

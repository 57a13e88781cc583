package directory

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileFormat struct {
	Principals []Principal `yaml:"principals"`
}

// LoadFile reads a YAML directory file of the form
//
//	principals:
//	  - id: 1
//	    username: admin
//	    email: admin@example.com
//	    secret: "123"
//	    role: admin
//	    name: Admin User
//	    phone: "+911234567890"
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading directory file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML directory document. Unknown fields are rejected.
func Parse(data []byte) (*Directory, error) {
	var f fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing directory file: %w", err)
	}
	if len(f.Principals) == 0 {
		return nil, fmt.Errorf("directory file lists no principals")
	}
	return New(f.Principals...)
}

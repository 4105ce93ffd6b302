// Package config loads client and server settings from YAML documents.
//
// A document has a client and a server section; either may be omitted, in
// which case the defaults apply:
//
//	server:
//	  port: 3000
//	  codec: json
//	  transport: http
//	client:
//	  peers:
//	    - host: 127.0.0.1
//	      port: 3000
//	  connect_count: 1
//
// Documents are read from a file (Load) or from an etcd key (EtcdStore).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"mrpc/client"
	"mrpc/server"

	"gopkg.in/yaml.v3"
)

type Document struct {
	Server server.Config `yaml:"server"`
	Client client.Config `yaml:"client"`
}

// Default returns a document holding the default client and server settings.
func Default() Document {
	return Document{
		Server: server.DefaultConfig(),
		Client: client.DefaultConfig(),
	}
}

// Parse decodes data on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (Document, error) {
	doc := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Document{}, fmt.Errorf("config: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Load reads and parses the document at path.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

func (d Document) Validate() error {
	if err := d.Server.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := d.Client.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (d Document) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

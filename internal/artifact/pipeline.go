package artifact

import (
	"bytes"
	"fmt"

	"fault-triage/backend/internal/classify"
)

// Marshal serializes a fitted pipeline.
func Marshal(p *classify.Pipeline) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SavePipeline serializes p and writes it under name.
func SavePipeline(s Store, name string, p *classify.Pipeline) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	return s.Write(name, data)
}

// LoadPipeline reads and decodes the pipeline stored under name.
func LoadPipeline(s Store, name string) (*classify.Pipeline, error) {
	data, err := s.Read(name)
	if err != nil {
		return nil, err
	}
	p, err := classify.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return p, nil
}

package config

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/specialistvlad/restore/internal/entity"
	"gopkg.in/yaml.v3"
)

// FileExtension is the suffix of configuration artifacts.
const FileExtension = ".yaml"

// fingerprintNamespace scopes configuration fingerprints.
var fingerprintNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/specialistvlad/restore/configuration"))

// document is the on-disk layout. Entities are a list sorted by ID and maps
// are emitted with sorted keys, so the encoding is canonical.
type document struct {
	Fingerprint string                `yaml:"fingerprint,omitempty"`
	Time        TimeStructure         `yaml:"time"`
	Entities    []Entity              `yaml:"entities"`
	Provenance  map[string]Provenance `yaml:"provenance"`
}

func (c *Configuration) document() document {
	return document{
		Fingerprint: c.fingerprint,
		Time:        c.time,
		Entities:    c.Entities(),
		Provenance:  c.provenance,
	}
}

func marshal(doc document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	return buf.Bytes(), nil
}

func fingerprint(c *Configuration) (string, error) {
	doc := c.document()
	doc.Fingerprint = ""
	data, err := marshal(doc)
	if err != nil {
		return "", err
	}
	return uuid.NewSHA1(fingerprintNamespace, data).String(), nil
}

// Encode renders the canonical YAML form of c.
func Encode(c *Configuration) ([]byte, error) {
	return marshal(c.document())
}

// Decode reads a configuration written by Encode. A fingerprint that does not
// match the content means the file was altered after compilation and is
// rejected. References are checked whether or not a fingerprint is present.
func Decode(data []byte) (*Configuration, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	ts, err := NewTimeStructure(doc.Time.Source, doc.Time.Years, doc.Time.Days, doc.Time.Hours)
	if err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	c, err := New(ts, doc.Entities, doc.Provenance)
	if err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if doc.Fingerprint != "" && doc.Fingerprint != c.fingerprint {
		return nil, fmt.Errorf("configuration fingerprint mismatch: file says %s, content hashes to %s", doc.Fingerprint, c.fingerprint)
	}
	if err := c.checkReferences(); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return c, nil
}

// checkReferences reports every link target, commodity and cost that names
// something the configuration does not define.
func (c *Configuration) checkReferences() error {
	var problems []string
	commodity := func(owner, id string) {
		if e, ok := c.entities[id]; !ok || e.Kind != entity.KindCommodity {
			problems = append(problems, fmt.Sprintf("%s: commodity %q is not defined", owner, id))
		}
	}
	for _, id := range c.ids {
		e := c.entities[id]
		if e.Commodity != "" {
			commodity(id, e.Commodity)
		}
		for _, l := range append(slices.Clone(e.Inputs), e.Outputs...) {
			if _, ok := c.entities[l.Target]; !ok {
				problems = append(problems, fmt.Sprintf("%s: link target %q is not defined", id, l.Target))
			}
			if l.Commodity != "" {
				commodity(id, l.Commodity)
			}
		}
		for _, cost := range e.Costs {
			if _, ok := e.Params[cost]; !ok {
				problems = append(problems, fmt.Sprintf("%s: cost %q has no parameter", id, cost))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("unresolved references: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ReadFile decodes a configuration artifact from disk.
func ReadFile(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration %s: %w", path, err)
	}
	return Decode(data)
}

package imageops

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed formats.yaml
var formatsYAML []byte

// Format describes one supported upload format.
type Format struct {
	Key                  string `yaml:"key" json:"key"`
	Name                 string `yaml:"name" json:"name"`
	Extension            string `yaml:"extension" json:"extension"`
	Description          string `yaml:"description" json:"description"`
	SupportsTransparency bool   `yaml:"supports_transparency" json:"supports_transparency"`
}

// Catalog is the /image/supported-formats payload.
type Catalog struct {
	SupportedFormats []Format `json:"supported_formats"`
	TotalCount       int      `json:"total_count"`
	HEICSupported    bool     `json:"heic_supported"`
}

var (
	catalogOnce sync.Once
	catalog     Catalog
	catalogErr  error
)

// SupportedFormats returns the embedded format list.
func SupportedFormats() (Catalog, error) {
	catalogOnce.Do(func() {
		var formats []Format
		if err := yaml.Unmarshal(formatsYAML, &formats); err != nil {
			catalogErr = fmt.Errorf("parse formats: %w", err)
			return
		}
		catalog = Catalog{SupportedFormats: formats, TotalCount: len(formats)}
	})
	return catalog, catalogErr
}

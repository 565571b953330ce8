package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

//go:embed schemas.yaml
var defaultSchemas []byte

// FieldKind tells ingest how to coerce a canonical field.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindDate   FieldKind = "date"
	KindNumber FieldKind = "number"
)

// FileFormat describes the delimited text layout of a source.
type FileFormat struct {
	Delimiter    string `yaml:"delimiter"`
	DecimalComma bool   `yaml:"decimal_comma"`
	Thousands    string `yaml:"thousands"`
}

// Headings names the balance-sheet rows read by the liquidity ratios.
type Headings struct {
	CurrentAssets      string `yaml:"current_assets"`
	CurrentLiabilities string `yaml:"current_liabilities"`
	Inventory          string `yaml:"inventory"`
	Cash               string `yaml:"cash"`
}

// WideLayout describes a label column followed by one column per period.
// When Quarters is empty every non-label column is a quarter.
type WideLayout struct {
	LabelColumn string   `yaml:"label_column"`
	Quarters    []string `yaml:"quarters"`
	Headings    Headings `yaml:"headings"`
}

// SourceSchema is the fixed rename mapping of one input source.
// Several raw names may map to the same canonical field; the first one
// present in the header wins.
type SourceSchema struct {
	Name     string               `yaml:"name"`
	Format   FileFormat           `yaml:"format"`
	Columns  map[string]string    `yaml:"columns"` // raw -> canonical
	Kinds    map[string]FieldKind `yaml:"kinds"`   // canonical -> kind
	Required []string             `yaml:"required"`
	Wide     *WideLayout          `yaml:"wide,omitempty"`
}

// Kind returns the declared kind of a canonical field (string by default).
func (s SourceSchema) Kind(field string) FieldKind {
	if k, ok := s.Kinds[field]; ok {
		return k
	}
	return KindString
}

// Schemas groups the four known sources.
type Schemas struct {
	Sales     SourceSchema `yaml:"sales"`
	Purchases SourceSchema `yaml:"purchases"`
	Balance   SourceSchema `yaml:"balance"`
	Employees SourceSchema `yaml:"employees"`
}

// DefaultSchemas returns the embedded schema document.
func DefaultSchemas() (*Schemas, error) {
	return ParseSchemas(defaultSchemas)
}

// LoadSchemas reads a schema document from path, or the embedded default
// when path is empty.
func LoadSchemas(path string) (*Schemas, error) {
	if path == "" {
		return DefaultSchemas()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return ParseSchemas(data)
}

// ParseSchemas decodes a YAML schema document.
func ParseSchemas(data []byte) (*Schemas, error) {
	var s Schemas
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schemas: %w", err)
	}
	for _, src := range []*SourceSchema{&s.Sales, &s.Purchases, &s.Balance, &s.Employees} {
		if src.Format.Delimiter == "" {
			src.Format.Delimiter = ","
		}
	}
	if s.Balance.Wide == nil {
		return nil, fmt.Errorf("balance schema needs a wide layout")
	}
	return &s, nil
}

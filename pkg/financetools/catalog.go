// Package financetools turns the Alpha Vantage series catalog into registry
// tools. The catalog is a declarative table (catalog.yaml) mapping tool names
// to a series function and its parameters; a single handler factory serves
// every entry.
package financetools

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// SymbolMode says whether a series takes the "symbol" parameter.
type SymbolMode string

const (
	SymbolNone     SymbolMode = ""
	SymbolOptional SymbolMode = "optional"
	SymbolRequired SymbolMode = "required"
)

// Param describes one series parameter.
type Param struct {
	Name        string   `yaml:"name"`
	Query       string   `yaml:"query"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Enum        []string `yaml:"enum"`
	Default     any      `yaml:"default"`
	Required    bool     `yaml:"required"`
	Upper       bool     `yaml:"upper"`
}

// QueryKey returns the query-string key the parameter is sent as.
func (p Param) QueryKey() string {
	if p.Query != "" {
		return p.Query
	}

	return p.Name
}

// Spec is one catalog entry.
type Spec struct {
	Name        string     `yaml:"name"`
	Function    string     `yaml:"function"`
	Description string     `yaml:"description"`
	Symbol      SymbolMode `yaml:"symbol"`
	Params      []Param    `yaml:"params"`
}

// Catalog is the ordered list of series specs.
type Catalog []Spec

// LoadCatalog parses the embedded catalog.
func LoadCatalog() (Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog parses a catalog document and checks it for duplicate names
// and unknown parameter types.
func ParseCatalog(data []byte) (Catalog, error) {
	var doc struct {
		Series Catalog `yaml:"series"`
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("financetools: parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(doc.Series))
	for _, s := range doc.Series {
		if err := s.validate(); err != nil {
			return nil, err
		}

		if seen[s.Name] {
			return nil, fmt.Errorf("financetools: catalog: duplicate series %q", s.Name)
		}
		seen[s.Name] = true
	}

	return doc.Series, nil
}

func (s Spec) validate() error {
	if s.Name == "" || s.Function == "" {
		return fmt.Errorf("financetools: catalog: series %q needs a name and a function", s.Name)
	}

	switch s.Symbol {
	case SymbolNone, SymbolOptional, SymbolRequired:
	default:
		return fmt.Errorf("financetools: catalog: series %q: invalid symbol mode %q", s.Name, s.Symbol)
	}

	for _, p := range s.Params {
		switch p.Type {
		case "string", "integer", "number", "boolean":
		default:
			return fmt.Errorf("financetools: catalog: series %q: param %q has invalid type %q", s.Name, p.Name, p.Type)
		}

		if p.Name == "symbol" {
			return fmt.Errorf("financetools: catalog: series %q: declare symbol with the symbol mode", s.Name)
		}
	}

	return nil
}

type propertySchema struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

type objectSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]propertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// Schema renders the JSON schema of the tool's arguments.
func (s Spec) Schema() (json.RawMessage, error) {
	obj := objectSchema{
		Type:       "object",
		Properties: make(map[string]propertySchema, len(s.Params)+1),
	}

	if s.Symbol != SymbolNone {
		obj.Properties["symbol"] = propertySchema{
			Type:        "string",
			Description: "Stock symbol (e.g., AAPL)",
		}
		if s.Symbol == SymbolRequired {
			obj.Required = append(obj.Required, "symbol")
		}
	}

	for _, p := range s.Params {
		obj.Properties[p.Name] = propertySchema{
			Type:        p.Type,
			Description: p.Description,
			Enum:        p.Enum,
			Default:     p.Default,
		}
		if p.Required {
			obj.Required = append(obj.Required, p.Name)
		}
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("financetools: schema for %q: %w", s.Name, err)
	}

	return data, nil
}

// Package countries is the catalogue of countries a lead can be filed under.
package countries

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed countries.yaml
var catalogueYAML []byte

type Country struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
}

// Catalogue is a read-only, ordered set of countries indexed by ISO code.
type Catalogue struct {
	list   []Country
	byCode map[string]Country
}

// Load parses the embedded catalogue.
func Load() (*Catalogue, error) {
	return Parse(catalogueYAML)
}

// Parse builds a catalogue from YAML of the form {countries: [{code, name}]}.
func Parse(data []byte) (*Catalogue, error) {
	var doc struct {
		Countries []Country `yaml:"countries"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse country catalogue: %w", err)
	}

	c := &Catalogue{byCode: make(map[string]Country, len(doc.Countries))}
	for _, country := range doc.Countries {
		code := strings.ToUpper(strings.TrimSpace(country.Code))
		if len(code) != 2 {
			return nil, fmt.Errorf("invalid country code %q", country.Code)
		}
		if _, dup := c.byCode[code]; dup {
			return nil, fmt.Errorf("duplicate country code %q", code)
		}
		country.Code = code
		c.byCode[code] = country
		c.list = append(c.list, country)
	}
	return c, nil
}

// MustLoad is Load for program start-up.
func MustLoad() *Catalogue {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalogue) All() []Country {
	out := make([]Country, len(c.list))
	copy(out, c.list)
	return out
}

// Lookup finds a country by code, ignoring case.
func (c *Catalogue) Lookup(code string) (Country, bool) {
	country, ok := c.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return country, ok
}

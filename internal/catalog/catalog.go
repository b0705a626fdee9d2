// Package catalog holds the endpoints a chain can call and the field names
// offered when wiring one step's output into a later step.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"api-chain/internal/config"
	"api-chain/internal/model"
	"api-chain/internal/util"

	"github.com/tidwall/gjson"
)

// maxDiscoveredIndices bounds how many array positions DiscoverFields lists.
const maxDiscoveredIndices = 10

// ErrInvalidFieldOption is returned by ParseFieldOption for values it did not produce.
var ErrInvalidFieldOption = errors.New("invalid field option")

// Entry is a catalog endpoint plus the field names its responses are known to carry.
type Entry struct {
	model.Endpoint
	Fields []string `json:"fields,omitempty"`
}

// Catalog is an ordered, name-indexed set of endpoints.
type Catalog struct {
	entries []Entry
	byName  map[string]int
}

// FieldOption is one selectable source field: Label for display, Value for ParseFieldOption.
type FieldOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// New builds a catalog from configuration, expanding environment variables in URLs.
func New(endpoints []config.EndpointConfig) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]int, len(endpoints))}
	for _, ep := range endpoints {
		if _, dup := c.byName[ep.Name]; dup {
			return nil, fmt.Errorf("duplicate catalog endpoint '%s'", ep.Name)
		}
		c.byName[ep.Name] = len(c.entries)
		c.entries = append(c.entries, Entry{
			Endpoint: model.Endpoint{
				Name:   ep.Name,
				URL:    util.ExpandEnvUniversal(ep.URL),
				Method: strings.ToUpper(ep.Method),
			},
			Fields: append([]string(nil), ep.Fields...),
		})
	}
	return c, nil
}

// Entries returns the catalog in configuration order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Endpoints returns the endpoint descriptors in configuration order.
func (c *Catalog) Endpoints() []model.Endpoint {
	out := make([]model.Endpoint, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Endpoint
	}
	return out
}

// Lookup finds an endpoint by display name.
func (c *Catalog) Lookup(name string) (model.Endpoint, bool) {
	idx, ok := c.byName[name]
	if !ok {
		return model.Endpoint{}, false
	}
	return c.entries[idx].Endpoint, true
}

// Fields returns the known response fields of the named endpoint.
func (c *Catalog) Fields(name string) []string {
	idx, ok := c.byName[name]
	if !ok {
		return nil
	}
	return c.entries[idx].Fields
}

// PossibleFields lists the source fields available to the step at index:
// every field of every earlier step, labelled "Step k: field" (k is 1-based)
// with the value "j.field" (j is 0-based). Endpoints without catalog fields
// fall back to the keys of the step's current response.
func (c *Catalog) PossibleFields(chain model.Chain, index int) []FieldOption {
	if index > len(chain) {
		index = len(chain)
	}
	var options []FieldOption
	for j := 0; j < index; j++ {
		step := chain[j]
		fields := c.Fields(step.Endpoint.Name)
		if len(fields) == 0 && step.HasResponse {
			fields = DiscoverFields(step.Response)
		}
		for _, field := range fields {
			options = append(options, FieldOption{
				Label: fmt.Sprintf("Step %d: %s", j+1, field),
				Value: fmt.Sprintf("%d.%s", j, field),
			})
		}
	}
	return options
}

// ParseFieldOption splits an option value "j.field" into its step index and field name.
// The field name may itself contain dots.
func ParseFieldOption(value string) (int, string, error) {
	idxText, field, found := strings.Cut(value, ".")
	if !found || field == "" {
		return 0, "", fmt.Errorf("%w '%s': expected <step>.<field>", ErrInvalidFieldOption, value)
	}
	idx, err := strconv.Atoi(idxText)
	if err != nil || idx < 0 {
		return 0, "", fmt.Errorf("%w '%s': step must be a non-negative integer", ErrInvalidFieldOption, value)
	}
	return idx, field, nil
}

// DiscoverFields lists the property names a field mapping can read from response:
// the keys of an object in document order, or the leading indices and "length"
// of an array. Scalars have none.
func DiscoverFields(response any) []string {
	encoded, err := json.Marshal(response)
	if err != nil {
		return nil
	}
	parsed := gjson.ParseBytes(encoded)

	var fields []string
	switch {
	case parsed.IsObject():
		parsed.ForEach(func(key, _ gjson.Result) bool {
			fields = append(fields, key.String())
			return true
		})
	case parsed.IsArray():
		n := 0
		parsed.ForEach(func(_, _ gjson.Result) bool {
			if n < maxDiscoveredIndices {
				fields = append(fields, strconv.Itoa(n))
			}
			n++
			return true
		})
		fields = append(fields, "length")
	}
	return fields
}

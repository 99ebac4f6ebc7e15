// Package timezone maps destination phone numbers to IANA zones and
// evaluates tenant calling windows in the lead's local time.
package timezone

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed zones.yaml
var zonesYAML []byte

// Table resolves NANP area codes to IANA zone names. The built-in table
// covers US and Canada; construct with NewTable to supply a custom mapping.
type Table struct {
	zones map[string]string
}

// NewTable creates a Table from an explicit area-code → zone mapping.
func NewTable(zones map[string]string) *Table {
	m := make(map[string]string, len(zones))
	for code, zone := range zones {
		m[code] = zone
	}
	return &Table{zones: m}
}

// LoadEmbeddedTable parses the embedded US/CA area-code table.
func LoadEmbeddedTable() (*Table, error) {
	var zones map[string]string
	if err := yaml.Unmarshal(zonesYAML, &zones); err != nil {
		return nil, fmt.Errorf("failed to parse embedded zone table: %w", err)
	}
	return NewTable(zones), nil
}

// MustLoadEmbeddedTable is LoadEmbeddedTable that panics on error. The
// embedded table is validated by tests; a parse failure is a build defect.
func MustLoadEmbeddedTable() *Table {
	t, err := LoadEmbeddedTable()
	if err != nil {
		panic(err)
	}
	return t
}

// ZoneOf maps an E.164 number to an IANA zone name. Only NANP numbers
// (+1 prefix) are covered by the built-in table. Returns ("", false) when
// no entry matches; callers must tolerate a missing zone and skip window
// evaluation in that case.
func (t *Table) ZoneOf(e164 string) (string, bool) {
	if !strings.HasPrefix(e164, "+1") {
		return "", false
	}
	rest := e164[2:]
	if len(rest) < 3 {
		return "", false
	}
	zone, ok := t.zones[rest[:3]]
	return zone, ok
}

// Len reports the number of area codes in the table.
func (t *Table) Len() int {
	return len(t.zones)
}

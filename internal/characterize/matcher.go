package characterize

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/couchcryptid/storm-data-windloss/internal/hazus"
)

// Matcher resolves a subtype plus its assigned characteristics to a wind
// building type.
type Matcher struct {
	windTypes map[string][]hazus.WindType
	values    map[string][]string // characteristic type -> possible values
}

// NewMatcher indexes the wind building type enumeration.
func NewMatcher(t *hazus.Tables) *Matcher {
	values := make(map[string][]string, len(t.CharTypes))
	for _, ct := range t.CharTypes {
		for _, v := range ct.Values {
			values[ct.Name] = append(values[ct.Name], v.Value)
		}
	}
	return &Matcher{windTypes: t.WindTypes, values: values}
}

// Match narrows the subtype's wind building types by each assigned
// characteristic whose type is discriminating for the subtype, meaning at
// least one of its types mentions one of the characteristic's values. The
// first survivor in declared order wins. No survivor is a mapping error.
func (m *Matcher) Match(subtype string, chars []domain.Characteristic) (string, error) {
	all := m.windTypes[subtype]
	if len(all) == 0 {
		return "", domain.MappingError("match wind building type",
			fmt.Errorf("subtype %s has no wind building types: %w", subtype, domain.ErrUnmappedCharacteristics))
	}

	candidates := all
	for _, ch := range chars {
		if !m.discriminating(all, ch.Type) {
			continue
		}
		var next []hazus.WindType
		for _, wt := range candidates {
			if wt.Mentions(ch.Value) {
				next = append(next, wt)
			}
		}
		if len(next) == 0 {
			return "", domain.MappingError("match wind building type",
				fmt.Errorf("subtype %s with %s: %w", subtype, describe(chars), domain.ErrUnmappedCharacteristics))
		}
		candidates = next
	}
	return candidates[0].WBID, nil
}

func (m *Matcher) discriminating(types []hazus.WindType, charType string) bool {
	for _, v := range m.values[charType] {
		for _, wt := range types {
			if wt.Mentions(v) {
				return true
			}
		}
	}
	return false
}

func describe(chars []domain.Characteristic) string {
	parts := make([]string, len(chars))
	for i, ch := range chars {
		parts[i] = ch.Type + "=" + ch.Value
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

package characterize

import (
	"fmt"
	"slices"

	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/domain"
	"github.com/couchcryptid/storm-data-windloss/internal/hazus"
)

// Rule draws one characteristic type. A rule with a condition applies only
// when the condition holds on the characteristics assigned before it.
type Rule struct {
	CharType  string
	Condition *config.CharacteristicCondition
}

// Applies reports whether the rule's condition holds. An unassigned
// dependency satisfies the condition.
func (r Rule) Applies(assigned []domain.Characteristic) bool {
	if r.Condition == nil {
		return true
	}
	for _, ch := range assigned {
		if ch.Type != r.Condition.DependsOn {
			continue
		}
		if r.Condition.Equals != "" {
			return ch.Value == r.Condition.Equals
		}
		return ch.Value != r.Condition.NotEquals
	}
	return true
}

// RuleChain is the declared order in which characteristics are drawn.
type RuleChain []Rule

// NewRuleChain builds one rule per characteristic type in declared order and
// attaches the methodology conditions. Conditions on types absent from the
// list are ignored. A condition depending on a type drawn later is a
// configuration error since the dependency could never be assigned in time.
func NewRuleChain(charTypes []hazus.CharType, conditions []config.CharacteristicCondition) (RuleChain, error) {
	position := make(map[string]int, len(charTypes))
	chain := make(RuleChain, len(charTypes))
	for i, ct := range charTypes {
		position[ct.Name] = i
		chain[i] = Rule{CharType: ct.Name}
	}

	for _, cond := range conditions {
		i, ok := position[cond.CharType]
		if !ok {
			continue
		}
		dep, ok := position[cond.DependsOn]
		if !ok {
			return nil, domain.ConfigurationError("build rule chain",
				fmt.Errorf("condition on %q depends on unknown characteristic %q", cond.CharType, cond.DependsOn))
		}
		if dep >= i {
			return nil, domain.ConfigurationError("build rule chain",
				fmt.Errorf("condition on %q depends on %q, which is drawn later", cond.CharType, cond.DependsOn))
		}
		chain[i].Condition = &cond
	}
	return chain, nil
}

// Names returns the characteristic types in chain order.
func (c RuleChain) Names() []string {
	names := make([]string, len(c))
	for i, r := range c {
		names[i] = r.CharType
	}
	return names
}

// AssignCharacteristics draws every rule of the chain for a building of the
// given subtype. Exactly one draw is consumed per rule whether or not the
// rule applies. A characteristic stays unassigned when its condition fails or
// when the scheme has no weight for it on this subtype. The result is nil
// when nothing was assigned.
func AssignCharacteristics(chain RuleChain, scheme *hazus.Scheme, subtype string, stream *domain.Stream) []domain.Characteristic {
	dists := scheme.Subtypes[subtype]
	assigned := make([]domain.Characteristic, 0, len(chain))
	for _, rule := range chain {
		draw := stream.Draw()
		if !rule.Applies(assigned) {
			continue
		}
		d, ok := dists[rule.CharType]
		if !ok {
			continue
		}
		i, err := Choose(d, draw)
		if err != nil {
			continue
		}
		assigned = append(assigned, domain.Characteristic{Type: rule.CharType, Value: d.Categories[i]})
	}
	if len(assigned) == 0 {
		return nil
	}
	return slices.Clip(assigned)
}

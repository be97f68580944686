package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Comparison operators understood by the field evaluators. SupportedOperators
// metadata on each evaluator documents which subset applies to which field.
const (
	OpEquals      = "equals"
	OpNotEquals   = "notEquals"
	OpContains    = "contains"
	OpNotContains = "notContains"
	OpGreaterThan = "greaterThan"
	OpLessThan    = "lessThan"
	OpIn          = "in"
	OpNotIn       = "notIn"
	OpBetween     = "between"
	OpRegex       = "regex"
)

// Boolean operators for condition groups.
const (
	GroupAnd = "AND"
	GroupOr  = "OR"
	GroupNot = "NOT"
)

var (
	// ErrInvalidCondition is returned when a criteria payload matches
	// neither the Condition nor the ConditionGroup shape.
	ErrInvalidCondition = errors.New("invalid condition structure")
)

// Condition is a leaf predicate over a single field of an item or its
// routing context.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
	Negate   bool   `json:"negate,omitempty"`
}

// ConditionGroup combines child nodes with a boolean operator. A NOT group
// inverts the conjunction of its children.
type ConditionGroup struct {
	Operator   string          `json:"operator"`
	Conditions []ConditionNode `json:"conditions"`
	Negate     bool            `json:"negate,omitempty"`
}

// ConditionNode is the tagged union over Condition and ConditionGroup.
// Exactly one of Leaf and Group is non-nil after a successful decode; the
// shape discrimination happens once, at decode time, and malformed nodes
// fail the decode rather than being guessed at.
type ConditionNode struct {
	Leaf  *Condition
	Group *ConditionGroup
}

// IsGroup reports whether the node is a condition group.
func (n *ConditionNode) IsGroup() bool { return n.Group != nil }

// IsLeaf reports whether the node is a leaf condition.
func (n *ConditionNode) IsLeaf() bool { return n.Leaf != nil }

// rawNode mirrors the JSON surface of both shapes so one decode pass can
// discriminate them.
type rawNode struct {
	Field      string            `json:"field"`
	Operator   string            `json:"operator"`
	Value      json.RawMessage   `json:"value"`
	Conditions []json.RawMessage `json:"conditions"`
	Negate     bool              `json:"negate"`
}

// UnmarshalJSON decodes a node, discriminating leaf from group by shape:
// an object with an "operator" and a "conditions" array is a group, an
// object with "field", "operator" and "value" is a leaf. Anything else is
// rejected.
func (n *ConditionNode) UnmarshalJSON(data []byte) error {
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}

	switch {
	case raw.Conditions != nil:
		op := strings.ToUpper(raw.Operator)
		if op != GroupAnd && op != GroupOr && op != GroupNot {
			return fmt.Errorf("%w: unknown group operator %q", ErrInvalidCondition, raw.Operator)
		}
		group := &ConditionGroup{
			Operator:   op,
			Conditions: make([]ConditionNode, 0, len(raw.Conditions)),
			Negate:     raw.Negate,
		}
		for _, childData := range raw.Conditions {
			var child ConditionNode
			if err := json.Unmarshal(childData, &child); err != nil {
				return err
			}
			group.Conditions = append(group.Conditions, child)
		}
		n.Group = group
		n.Leaf = nil
		return nil

	case raw.Field != "" && raw.Operator != "" && raw.Value != nil:
		var value any
		if err := json.Unmarshal(raw.Value, &value); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCondition, err)
		}
		n.Leaf = &Condition{
			Field:    raw.Field,
			Operator: raw.Operator,
			Value:    value,
			Negate:   raw.Negate,
		}
		n.Group = nil
		return nil

	default:
		return fmt.Errorf("%w: neither condition nor group shape", ErrInvalidCondition)
	}
}

// MarshalJSON encodes whichever shape the node holds.
func (n ConditionNode) MarshalJSON() ([]byte, error) {
	switch {
	case n.Group != nil:
		return json.Marshal(n.Group)
	case n.Leaf != nil:
		return json.Marshal(n.Leaf)
	default:
		return nil, ErrInvalidCondition
	}
}

// IsCondition reports whether the raw JSON value has the leaf condition
// shape.
func IsCondition(data json.RawMessage) bool {
	var node ConditionNode
	if err := json.Unmarshal(data, &node); err != nil {
		return false
	}
	return node.IsLeaf()
}

// IsConditionGroup reports whether the raw JSON value has the condition
// group shape.
func IsConditionGroup(data json.RawMessage) bool {
	var node ConditionNode
	if err := json.Unmarshal(data, &node); err != nil {
		return false
	}
	return node.IsGroup()
}

// IsValidCondition reports whether the raw JSON value decodes to either
// shape. Rules whose criteria fail this check are skipped, never guessed at.
func IsValidCondition(data json.RawMessage) bool {
	var node ConditionNode
	return json.Unmarshal(data, &node) == nil
}

// conditionalCriteria is the criteria payload of conditional-type rules.
type conditionalCriteria struct {
	Condition json.RawMessage `json:"condition"`
}

// ParseConditionalCriteria extracts and validates the condition tree from a
// conditional rule's criteria payload.
func ParseConditionalCriteria(criteria json.RawMessage) (*ConditionNode, error) {
	var wrapper conditionalCriteria
	if err := json.Unmarshal(criteria, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	if wrapper.Condition == nil {
		return nil, fmt.Errorf("%w: criteria has no condition", ErrInvalidCondition)
	}
	var node ConditionNode
	if err := json.Unmarshal(wrapper.Condition, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// ParseFieldCriteria decodes a field-evaluator rule's criteria payload,
// which is a single leaf condition.
func ParseFieldCriteria(criteria json.RawMessage) (*Condition, error) {
	var node ConditionNode
	if err := json.Unmarshal(criteria, &node); err != nil {
		return nil, err
	}
	if !node.IsLeaf() {
		return nil, fmt.Errorf("%w: expected a leaf condition", ErrInvalidCondition)
	}
	return node.Leaf, nil
}

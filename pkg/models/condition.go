package models

// ConditionOperator names a comparison applied to a trigger payload field.
type ConditionOperator string

const (
	OperatorEquals       ConditionOperator = "equals"
	OperatorNotEquals    ConditionOperator = "not_equals"
	OperatorGreaterThan  ConditionOperator = "greater_than"
	OperatorLessThan     ConditionOperator = "less_than"
	OperatorContains     ConditionOperator = "contains"
	OperatorNotContains  ConditionOperator = "not_contains"
	OperatorStartsWith   ConditionOperator = "starts_with"
	OperatorEndsWith     ConditionOperator = "ends_with"
	OperatorIsEmpty      ConditionOperator = "is_empty"
	OperatorIsNotEmpty   ConditionOperator = "is_not_empty"
	OperatorMatchesRegex ConditionOperator = "matches_regex"
)

// ConditionSpec gates whether a workflow fires for a given payload.
// Field is a dotted path into the payload (e.g. "order.total").
type ConditionSpec struct {
	Field    string            `json:"field" yaml:"field" validate:"required"`
	Operator ConditionOperator `json:"operator" yaml:"operator" validate:"required,oneof=equals not_equals greater_than less_than contains not_contains starts_with ends_with is_empty is_not_empty matches_regex"`
	Value    any               `json:"value,omitempty" yaml:"value,omitempty"`
}

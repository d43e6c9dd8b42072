package graphql

import (
	"fmt"
	"sort"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/stake-plus/ibots/src/shared/casing"
)

// Operation is a parsed catalog entry: the payload text plus the variables
// it declares, keyed by their snake_case names.
type Operation struct {
	Name          string
	Text          string
	OperationName string
	Variables     map[string]string
}

// ParseOperation parses text and records its declared variables. The text
// must hold exactly one operation definition.
func ParseOperation(name, text string) (*Operation, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: name, Input: text})
	if err != nil {
		return nil, fmt.Errorf("graphql: parse %s: %w", name, err)
	}
	if len(doc.Operations) != 1 {
		return nil, fmt.Errorf("graphql: %s: want one operation, got %d", name, len(doc.Operations))
	}
	def := doc.Operations[0]
	op := &Operation{
		Name:          name,
		Text:          text,
		OperationName: def.Name,
		Variables:     make(map[string]string, len(def.VariableDefinitions)),
	}
	for _, v := range def.VariableDefinitions {
		op.Variables[casing.SnakeCase(v.Variable)] = v.Variable
	}
	return op, nil
}

// Accepts reports whether the operation declares the snake_case variable.
func (o *Operation) Accepts(name string) bool {
	_, ok := o.Variables[name]
	return ok
}

// Validate fails with ErrUnsupportedVariable when vars names a variable the
// operation does not declare.
func (o *Operation) Validate(vars map[string]any) error {
	var bad []string
	for k := range vars {
		if !o.Accepts(k) {
			bad = append(bad, k)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return fmt.Errorf("%w: %v not declared by %s", ErrUnsupportedVariable, bad, o.Name)
}

// wireVariables renames snake_case variables to the names the operation
// declares on the wire.
func (o *Operation) wireVariables(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		name, ok := o.Variables[k]
		if !ok {
			name = casing.MixedCase(k)
		}
		out[name] = v
	}
	return out
}

// DeclaredVariables returns the snake_case names in sorted order.
func (o *Operation) DeclaredVariables() []string {
	out := make([]string, 0, len(o.Variables))
	for k := range o.Variables {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

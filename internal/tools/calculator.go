package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Calculator performs a basic arithmetic operation on two numbers.
// Supported operations: add, sub, mul, div.
type Calculator struct{}

// NewCalculator creates the calculator tool
func NewCalculator() *Calculator {
	return &Calculator{}
}

func (c *Calculator) Name() string {
	return "calculator"
}

func (c *Calculator) Description() string {
	return "Perform a basic arithmetic operation on two numbers. Supported operations: add, sub, mul, div"
}

func (c *Calculator) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"first_num": map[string]any{
				"type":        "number",
				"description": "First operand",
			},
			"second_num": map[string]any{
				"type":        "number",
				"description": "Second operand",
			},
			"operation": map[string]any{
				"type": "string",
				"enum": []string{"add", "sub", "mul", "div"},
			},
		},
		"required": []string{"first_num", "second_num", "operation"},
	}
}

// Call evaluates the operation. Division by zero and unsupported operations
// yield an {"error": ...} result rather than a Go error.
func (c *Calculator) Call(_ context.Context, args map[string]any) (any, error) {
	first, ok := toFloat(args["first_num"])
	if !ok {
		return map[string]any{"error": "first_num must be a number"}, nil
	}
	second, ok := toFloat(args["second_num"])
	if !ok {
		return map[string]any{"error": "second_num must be a number"}, nil
	}
	operation, _ := args["operation"].(string)

	var result float64
	switch operation {
	case "add":
		result = first + second
	case "sub":
		result = first - second
	case "mul":
		result = first * second
	case "div":
		if second == 0 {
			return map[string]any{"error": "Division by zero is not allowed"}, nil
		}
		result = first / second
	default:
		return map[string]any{"error": fmt.Sprintf("Unsupported operation '%s'", operation)}, nil
	}

	return map[string]any{
		"first_num":  first,
		"second_num": second,
		"operation":  operation,
		"result":     result,
	}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

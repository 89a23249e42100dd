package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinanceRegistry_Invoke(t *testing.T) {
	tests := []struct {
		name     string
		tool     string
		args     map[string]any
		expected string
	}{
		{"add with separators", ToolAdd, map[string]any{"value1": 1200.0, "value2": 1500.0}, "Sum: 2,700.00"},
		{"subtract", ToolSubtract, map[string]any{"value1": 5000.0, "value2": 1250.5}, "Difference: 3,749.50"},
		{"multiply", ToolMultiply, map[string]any{"value1": 120, "value2": 25}, "Product: 3,000.00"},
		{"divide", ToolDivide, map[string]any{"value1": 10.0, "value2": 4.0}, "Quotient: 2.50"},
		{"divide by zero", ToolDivide, map[string]any{"value1": 10.0, "value2": 0.0}, "Error: Division by zero is not allowed"},
		{"revenue growth", ToolRevenueGrowth, map[string]any{"current_revenue": 1.5e6, "previous_revenue": 1.2e6}, "Revenue Growth: 25.00%"},
		{"revenue growth zero base", ToolRevenueGrowth, map[string]any{"current_revenue": 1.5e6, "previous_revenue": 0}, "Error: Previous revenue cannot be zero for growth calculation"},
		{"debt to equity", ToolDebtToEquity, map[string]any{"total_debt": 500000.0, "total_equity": 1000000.0}, "Debt-to-Equity Ratio: 0.50"},
		{"debt to equity zero equity", ToolDebtToEquity, map[string]any{"total_debt": 500000.0, "total_equity": 0.0}, "Error: Total equity cannot be zero for debt-to-equity calculation"},
		{"net profit margin", ToolNetProfitMargin, map[string]any{"net_profit": 200000.0, "total_revenue": 1000000.0}, "Net Profit Margin: 20.00%"},
		{"net profit margin zero revenue", ToolNetProfitMargin, map[string]any{"net_profit": 1.0, "total_revenue": 0.0}, "Error: Total revenue cannot be zero for profit margin calculation"},
		{"roi", ToolROI, map[string]any{"gain_from_investment": 120000.0, "cost_of_investment": 100000.0}, "Return on Investment (ROI): 20.00%"},
		{"roi zero cost", ToolROI, map[string]any{"gain_from_investment": 1.0, "cost_of_investment": 0.0}, "Error: Cost of investment cannot be zero for ROI calculation"},
		{"string arguments", ToolAdd, map[string]any{"value1": "1,200", "value2": " 1500 "}, "Sum: 2,700.00"},
		{"json numbers", ToolAdd, map[string]any{"value1": json.Number("1"), "value2": json.Number("2")}, "Sum: 3.00"},
	}

	r := NewFinanceRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Invoke(context.Background(), tt.tool, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRegistry_InvokeBadInputReturnsText(t *testing.T) {
	r := NewFinanceRegistry()
	ctx := context.Background()

	got, err := r.Invoke(ctx, "npv", nil)
	require.NoError(t, err)
	assert.Equal(t, `Error: unknown tool "npv"`, got)

	got, err = r.Invoke(ctx, ToolDivide, map[string]any{"value1": 1.0})
	require.NoError(t, err)
	assert.Equal(t, `Error: missing argument "value2" for divide`, got)

	got, err = r.Invoke(ctx, ToolDivide, map[string]any{"value1": 1.0, "value2": "ten"})
	require.NoError(t, err)
	assert.Contains(t, got, `Error: argument "value2" for divide is not a number`)

	got, err = r.Invoke(ctx, ToolDivide, map[string]any{"value1": 1.0, "value2": true})
	require.NoError(t, err)
	assert.Contains(t, got, "unsupported type bool")
}

func TestRegistry_InvokeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFinanceRegistry().Invoke(ctx, ToolAdd, map[string]any{"value1": 1, "value2": 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry_List(t *testing.T) {
	specs, err := NewFinanceRegistry().List(context.Background())
	require.NoError(t, err)

	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	assert.Equal(t, []string{
		ToolAdd, ToolSubtract, ToolMultiply, ToolDivide,
		ToolRevenueGrowth, ToolDebtToEquity, ToolNetProfitMargin, ToolROI,
	}, names)

	for _, s := range specs {
		for _, p := range s.Parameters {
			assert.Equal(t, ParamNumber, p.Type)
		}
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	noop := func([]float64) (string, error) { return "", nil }

	assert.Error(t, r.Register(Tool{Compute: noop}))
	assert.Error(t, r.Register(Tool{Spec: ToolSpec{Name: "x"}}))
	require.NoError(t, r.Register(Tool{Spec: ToolSpec{Name: "x"}, Compute: noop}))
	assert.Error(t, r.Register(Tool{Spec: ToolSpec{Name: "x"}, Compute: noop}))
}

func TestToolSpec_JSONSchema(t *testing.T) {
	spec := ToolSpec{
		Name: ToolROI,
		Parameters: []ParamSpec{
			{Name: "gain_from_investment", Type: ParamNumber, Description: "gain"},
			{Name: "cost_of_investment", Type: ParamNumber},
		},
	}

	schema := spec.JSONSchema()
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"gain_from_investment", "cost_of_investment"}, schema["required"])
	props := schema["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "number", "description": "gain"}, props["gain_from_investment"])
	assert.Equal(t, map[string]any{"type": "number"}, props["cost_of_investment"])
}

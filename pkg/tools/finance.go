package tools

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"finance-rag-be/pkg/rag/ragerr"
)

const (
	ToolAdd             = "add"
	ToolSubtract        = "subtract"
	ToolMultiply        = "multiply"
	ToolDivide          = "divide"
	ToolRevenueGrowth   = "revenue_growth"
	ToolDebtToEquity    = "debt_to_equity"
	ToolNetProfitMargin = "net_profit_margin"
	ToolROI             = "roi"
)

// amounts are printed with thousands separators, ratios and percentages are not
var amountPrinter = message.NewPrinter(language.English)

func number(name, desc string) ParamSpec {
	return ParamSpec{Name: name, Type: ParamNumber, Description: desc}
}

func pair(desc string) []ParamSpec {
	return []ParamSpec{
		number("value1", "First numeric value"),
		number("value2", desc),
	}
}

func guard(tool, reason string) error {
	return &ragerr.ToolExecutionError{Tool: tool, Reason: reason}
}

// FinanceTools returns the fixed tool set in catalog order.
func FinanceTools() []Tool {
	return []Tool{
		{
			Spec: ToolSpec{
				Name:        ToolAdd,
				Description: "Add two numeric values together, e.g. to combine revenue streams or total expenses.",
				Parameters:  pair("Second numeric value to add"),
			},
			Compute: func(a []float64) (string, error) {
				return amountPrinter.Sprintf("Sum: %.2f", a[0]+a[1]), nil
			},
		},
		{
			Spec: ToolSpec{
				Name:        ToolSubtract,
				Description: "Subtract the second value from the first, e.g. revenue minus expenses.",
				Parameters:  pair("Value to subtract"),
			},
			Compute: func(a []float64) (string, error) {
				return amountPrinter.Sprintf("Difference: %.2f", a[0]-a[1]), nil
			},
		},
		{
			Spec: ToolSpec{
				Name:        ToolMultiply,
				Description: "Multiply two numeric values, e.g. units sold times price per unit.",
				Parameters:  pair("Multiplier"),
			},
			Compute: func(a []float64) (string, error) {
				return amountPrinter.Sprintf("Product: %.2f", a[0]*a[1]), nil
			},
		},
		{
			Spec: ToolSpec{
				Name:        ToolDivide,
				Description: "Divide the first value by the second, e.g. for ratios, rates and per-unit values.",
				Parameters:  pair("Divisor, must not be zero"),
			},
			Compute: func(a []float64) (string, error) {
				if a[1] == 0 {
					return "", guard(ToolDivide, "Division by zero is not allowed")
				}
				return amountPrinter.Sprintf("Quotient: %.2f", a[0]/a[1]), nil
			},
		},
		{
			Spec: ToolSpec{
				Name:        ToolRevenueGrowth,
				Description: "Percentage revenue growth between two periods: ((current - previous) / previous) * 100.",
				Parameters: []ParamSpec{
					number("current_revenue", "Revenue for the current period"),
					number("previous_revenue", "Revenue for the comparison period, must not be zero"),
				},
			},
			Compute: func(a []float64) (string, error) {
				if a[1] == 0 {
					return "", guard(ToolRevenueGrowth, "Previous revenue cannot be zero for growth calculation")
				}
				return fmt.Sprintf("Revenue Growth: %.2f%%", (a[0]-a[1])/a[1]*100), nil
			},
		},
		{
			Spec: ToolSpec{
				Name:        ToolDebtToEquity,
				Description: "Debt-to-equity ratio for leverage analysis: total debt / total equity.",
				Parameters: []ParamSpec{
					number("total_debt", "Short-term plus long-term debt"),
					number("total_equity", "Total shareholders' equity, must not be zero"),
				},
			},
			Compute: func(a []float64) (string, error) {
				if a[1] == 0 {
					return "", guard(ToolDebtToEquity, "Total equity cannot be zero for debt-to-equity calculation")
				}
				return fmt.Sprintf("Debt-to-Equity Ratio: %.2f", a[0]/a[1]), nil
			},
		},
		{
			Spec: ToolSpec{
				Name:        ToolNetProfitMargin,
				Description: "Net profit margin percentage: (net profit / total revenue) * 100.",
				Parameters: []ParamSpec{
					number("net_profit", "Revenue minus all expenses"),
					number("total_revenue", "Total revenue for the period, must not be zero"),
				},
			},
			Compute: func(a []float64) (string, error) {
				if a[1] == 0 {
					return "", guard(ToolNetProfitMargin, "Total revenue cannot be zero for profit margin calculation")
				}
				return fmt.Sprintf("Net Profit Margin: %.2f%%", a[0]/a[1]*100), nil
			},
		},
		{
			Spec: ToolSpec{
				Name:        ToolROI,
				Description: "Return on investment percentage: ((gain - cost) / cost) * 100.",
				Parameters: []ParamSpec{
					number("gain_from_investment", "Current value of the investment or total return"),
					number("cost_of_investment", "Original amount invested, must not be zero"),
				},
			},
			Compute: func(a []float64) (string, error) {
				if a[1] == 0 {
					return "", guard(ToolROI, "Cost of investment cannot be zero for ROI calculation")
				}
				return fmt.Sprintf("Return on Investment (ROI): %.2f%%", (a[0]-a[1])/a[1]*100), nil
			},
		},
	}
}

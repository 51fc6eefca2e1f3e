package service

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ComputeTotal returns max(0, sum(lineTotals) - discount).
func ComputeTotal(lineTotals []decimal.Decimal, discount decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range lineTotals {
		sum = sum.Add(t)
	}
	total := sum.Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

// NumericToDecimal converts a nullable NUMERIC column to a decimal; NULL is zero.
func NumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	return numericToDecimal(n)
}

// DecimalToNumeric converts a decimal to a NUMERIC(12,2) column value.
func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return decimalToNumeric(d)
}

package report

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// FormatCurrency formats d as dollars with thousands separators: $1,234.56, -$1,234.56.
func FormatCurrency(d decimal.Decimal) string {
	d = d.Round(2)
	s := d.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-2:]
	out := "$" + groupThousands(intPart) + "." + frac
	if d.IsNegative() {
		return "-" + out
	}
	return out
}

// FormatPercent formats v with one decimal: 12.3%.
func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

// FormatCount formats n with thousands separators: 1,234.
func FormatCount(n int64) string {
	if n < 0 {
		return "-" + groupThousands(strconv.FormatInt(-n, 10))
	}
	return groupThousands(strconv.FormatInt(n, 10))
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Cell formatters for decoded JSON values. Amounts arrive as strings (decimal), numbers as json.Number.

type formatter func(v interface{}) string

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(val)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(val), true
	}
	return decimal.Zero, false
}

func currencyCell(v interface{}) string {
	if d, ok := toDecimal(v); ok {
		return FormatCurrency(d)
	}
	return plainCell(v)
}

func percentCell(v interface{}) string {
	if d, ok := toDecimal(v); ok {
		f, _ := d.Float64()
		return FormatPercent(f)
	}
	return plainCell(v)
}

func countCell(v interface{}) string {
	if d, ok := toDecimal(v); ok && d.IsInteger() {
		return FormatCount(d.IntPart())
	}
	return plainCell(v)
}

func dateCell(v interface{}) string {
	if s, ok := v.(string); ok {
		if t, err := time.Parse(dateLayout, s); err == nil {
			return FormatDate(t)
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return FormatDate(t)
		}
	}
	return plainCell(v)
}

func plainCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		if d, err := decimal.NewFromString(val.String()); err == nil && d.IsInteger() {
			return FormatCount(d.IntPart())
		}
		return val.String()
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

// valueCell picks a formatter from a summary key: *_amount, *_value and average_deal_size are
// currency, *_rate is a percentage, dates are shortened and integers are counts.
func valueCell(key string, v interface{}) string {
	switch {
	case strings.HasSuffix(key, "_amount"), strings.HasSuffix(key, "_value"), key == "average_deal_size":
		return currencyCell(v)
	case strings.HasSuffix(key, "_rate"):
		return percentCell(v)
	case strings.HasSuffix(key, "_at"), strings.HasSuffix(key, "_date"):
		return dateCell(v)
	}
	return plainCell(v)
}

// titleKey turns snake_case keys into Title Case labels.
func titleKey(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

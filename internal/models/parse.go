package models

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"receipt-service/pkg/logger"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// DateLayout is the external DD/MM/YYYY representation.
	DateLayout = "02/01/2006"
	// missingValue is what the model returns for fields absent from the receipt.
	missingValue = "None"
)

// SingaporeLocation is the reference timezone for receipts without a date.
var SingaporeLocation = loadSingapore()

// now is replaced in tests.
var now = time.Now

func loadSingapore() *time.Location {
	loc, err := time.LoadLocation("Asia/Singapore")
	if err != nil {
		return time.FixedZone("SGT", 8*60*60)
	}
	return loc
}

var sgtToken = regexp.MustCompile(`(?i)\bSGT\b`)

// ParseDate reads a free-form date, day before month. "None" means today in Singapore.
func ParseDate(value string) (time.Time, error) {
	if value == missingValue {
		t := now().In(SingaporeLocation)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, SingaporeLocation), nil
	}

	cleaned := strings.TrimSpace(sgtToken.ReplaceAllString(value, ""))
	if cleaned != "" {
		t, err := dateparse.ParseIn(cleaned, SingaporeLocation,
			dateparse.PreferMonthFirst(false),
			dateparse.RetryAmbiguousDateWithSwap(true),
		)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, SingaporeLocation), nil
		}
	}

	return time.Time{}, &ReceiptError{
		Field:   "date",
		Message: fmt.Sprintf("Invalid date format: '%s'. If possible, provide a valid date in the format: 'YYYY-MM-DD'", value),
	}
}

// FormatDate renders a date as DD/MM/YYYY.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// amountToken matches the first run of digits with grouping/decimal separators.
var amountToken = regexp.MustCompile(`\d(?:[\d.,'’]|\s\d)*`)

// ParseAmount extracts a money magnitude from a decorated string ("$12.50", "12,50", "SGD 1,234.00").
func ParseAmount(value string) (decimal.Decimal, error) {
	token := strings.TrimRight(amountToken.FindString(value), ".,'’ ")
	if token != "" {
		if d, err := decimal.NewFromString(normalizeAmount(token)); err == nil {
			return d, nil
		}
	}
	return decimal.Decimal{}, &ReceiptError{
		Field:   "total_cost",
		Message: fmt.Sprintf("Invalid total cost '%s'. Please provide a valid number", value),
	}
}

// normalizeAmount picks the decimal separator and drops grouping characters.
func normalizeAmount(token string) string {
	token = strings.NewReplacer(" ", "", "'", "", "’", "").Replace(token)

	lastDot := strings.LastIndex(token, ".")
	lastComma := strings.LastIndex(token, ",")

	decimalSep := byte(0)
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			decimalSep = '.'
		} else {
			decimalSep = ','
		}
	case lastComma >= 0:
		// "12,50" is a decimal comma; "12,500" and "1,234,567" are grouping
		if strings.Count(token, ",") == 1 && len(token)-lastComma-1 != 3 {
			decimalSep = ','
		}
	case lastDot >= 0:
		if strings.Count(token, ".") == 1 {
			decimalSep = '.'
		}
	}

	var b strings.Builder
	b.Grow(len(token))
	for i := 0; i < len(token); i++ {
		ch := token[i]
		switch {
		case ch >= '0' && ch <= '9':
			b.WriteByte(ch)
		case ch == decimalSep && i == strings.LastIndexByte(token, decimalSep):
			b.WriteByte('.')
		}
	}
	return b.String()
}

// FormatAmount renders money with two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ParseQuantity coerces a model-supplied quantity to an int. It never fails:
// anything unusable becomes 1 and is logged.
func ParseQuantity(value any) int {
	switch q := value.(type) {
	case int:
		return q
	case int32:
		return int(q)
	case int64:
		return int(q)
	case float64:
		return truncateQuantity(q, value)
	case float32:
		return truncateQuantity(float64(q), value)
	case json.Number:
		if n, err := q.Int64(); err == nil {
			return int(n)
		}
		f, err := q.Float64()
		if err != nil {
			return defaultQuantity(value, err)
		}
		return truncateQuantity(f, value)
	case string:
		s := strings.TrimSpace(q)
		if strings.Contains(s, ".") {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return defaultQuantity(value, err)
			}
			return truncateQuantity(f, value)
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return defaultQuantity(value, err)
		}
		return n
	default:
		return defaultQuantity(value, nil)
	}
}

func truncateQuantity(f float64, original any) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return defaultQuantity(original, nil)
	}
	return int(f)
}

func defaultQuantity(value any, err error) int {
	logger.Warn("Couldn't parse item quantity, defaulting to 1",
		zap.Any("item_quantity", value),
		zap.Error(err),
	)
	return 1
}

package reports

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a decimal with thousands separators at two decimals
// for report presentation ("1,550,050.00"). The value is formatted from its
// exact string form; no float round-trip.
func FormatAmount(d decimal.Decimal) string {
	fixed := d.Round(2).StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")
	if n, err := strconv.ParseInt(intPart, 10, 64); err == nil {
		return sign + amountPrinter.Sprintf("%d", n) + "." + frac
	}
	return sign + groupDigits(intPart) + "." + frac
}

// groupDigits inserts thousands separators into a plain digit string. Only
// reached for integer parts past int64 range.
func groupDigits(digits string) string {
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

package orders

import (
	"strings"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
)

// NormalizePhone strips formatting and an optional 52 country prefix,
// returning the 10-digit national number.
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 12 && strings.HasPrefix(digits, "52") {
		digits = digits[2:]
	}
	return digits, len(digits) == 10
}

// checkCustomer enforces the per-channel required fields and normalizes the phone.
func checkCustomer(src Source, delivery bool, c *Customer) error {
	if src == SourceCaja && !delivery {
		return nil
	}
	problems := map[string]string{}
	if strings.TrimSpace(c.Name) == "" {
		problems["customer.name"] = "required"
	}
	if strings.TrimSpace(c.Phone) == "" {
		problems["customer.phone"] = "required"
	} else if phone, ok := NormalizePhone(c.Phone); ok {
		c.Phone = phone
	} else {
		problems["customer.phone"] = "must be a 10-digit number"
	}
	if strings.TrimSpace(c.DesiredAt) == "" {
		problems["customer.desiredAt"] = "required"
	}
	if delivery {
		if strings.TrimSpace(c.AddressNote) == "" {
			problems["customer.addressNote"] = "required for delivery"
		}
		if src == SourceCliente && c.Geo == nil {
			problems["customer.geo"] = "required for delivery"
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return apperr.New(apperr.CodeValidation, "missing or invalid customer data").WithDetails(problems)
}

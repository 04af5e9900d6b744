package billing

import (
	"fmt"
	"strings"
)

// NormalizePhone converts local and international Kenyan numbers to the 2547XXXXXXXX form
// the gateway expects.
func NormalizePhone(raw string) (string, error) {
	phone := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	phone = strings.TrimPrefix(phone, "+")
	if strings.HasPrefix(phone, "0") {
		phone = "254" + phone[1:]
	}
	if len(phone) != 12 || !strings.HasPrefix(phone, "254") {
		return "", fmt.Errorf("%w: invalid phone number %q", ErrValidation, raw)
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: invalid phone number %q", ErrValidation, raw)
		}
	}
	return phone, nil
}

// phoneCandidates returns the stored forms a client's phone may take.
func phoneCandidates(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	out := []string{trimmed}
	normalized, errNorm := NormalizePhone(trimmed)
	if errNorm != nil {
		return out
	}
	local := "0" + normalized[3:]
	for _, v := range []string{normalized, "+" + normalized, local} {
		if v != trimmed {
			out = append(out, v)
		}
	}
	return out
}

package orphan

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// NormalizePhone formats a valid number as E.164. Anything libphonenumber
// cannot validate is returned trimmed but otherwise untouched.
func NormalizePhone(raw string, region string) string {
	phone := strings.TrimSpace(raw)
	if phone == "" {
		return ""
	}
	if region == "" {
		region = "US"
	}
	num, err := libphonenumber.Parse(phone, strings.ToUpper(region))
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return phone
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}

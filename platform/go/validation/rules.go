package validation

import (
	"unicode"

	"github.com/shopspring/decimal"
)

const (
	MinPasswordLength = 8
	MinDuration       = 15
	MaxDuration       = 480
)

// MaxPrice is the largest accepted event price.
var MaxPrice = decimal.RequireFromString("999999.99")

// PasswordProblems lists the unmet password rules: at least 8 characters with
// a lower-case letter, an upper-case letter and a digit.
func PasswordProblems(password string) []string {
	var problems []string
	if len([]rune(password)) < MinPasswordLength {
		problems = append(problems, "must be at least 8 characters")
	}

	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower {
		problems = append(problems, "must contain a lower-case letter")
	}
	if !upper {
		problems = append(problems, "must contain an upper-case letter")
	}
	if !digit {
		problems = append(problems, "must contain a digit")
	}
	return problems
}

// CheckPassword adds password problems to e under field.
func (e *Error) CheckPassword(field, password string) {
	for _, p := range PasswordProblems(password) {
		e.Add(field, p)
	}
}

// CheckPrice enforces 0 <= price <= 999999.99 with at most two decimal places.
func (e *Error) CheckPrice(field string, price decimal.Decimal) {
	if price.IsNegative() {
		e.Add(field, "must be >= 0")
	}
	if price.GreaterThan(MaxPrice) {
		e.Add(field, "must be <= 999999.99")
	}
	if !price.Equal(price.Round(2)) {
		e.Add(field, "must have at most 2 decimal places")
	}
}

package utils

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// PasswordPolicy lists the rules a new password must satisfy.
type PasswordPolicy struct {
	MinLength      int
	RequireLetters bool
	RequireNumbers bool
	RequireSymbols bool
}

var (
	// StaffPasswordPolicy only enforces length.
	StaffPasswordPolicy = PasswordPolicy{MinLength: 8}
	// CustomerPasswordPolicy also demands letter, digit and symbol classes.
	CustomerPasswordPolicy = PasswordPolicy{MinLength: 8, RequireLetters: true, RequireNumbers: true, RequireSymbols: true}
)

// Check returns one message per violated rule. An empty password is left to
// the required rule and yields nothing here.
func (p PasswordPolicy) Check(password string) []string {
	if password == "" {
		return nil
	}

	var letters, numbers, symbols bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letters = true
		case unicode.IsNumber(r):
			numbers = true
		case unicode.IsPunct(r), unicode.IsSymbol(r), unicode.IsSpace(r):
			symbols = true
		}
	}

	var problems []string
	if utf8.RuneCountInString(password) < p.MinLength {
		problems = append(problems, fmt.Sprintf("the password must be at least %d characters", p.MinLength))
	}
	if p.RequireLetters && !letters {
		problems = append(problems, "the password must contain at least one letter")
	}
	if p.RequireNumbers && !numbers {
		problems = append(problems, "the password must contain at least one number")
	}
	if p.RequireSymbols && !symbols {
		problems = append(problems, "the password must contain at least one symbol")
	}
	return problems
}

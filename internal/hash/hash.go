package hash

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 8

// dummyHash is compared against when a user does not exist so that login
// takes the same time either way.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("todo-service-dummy-password"), bcrypt.DefaultCost)

var commonPasswords = toSet(
	"password",
	"password1",
	"password123",
	"12345678",
	"123456789",
	"1234567890",
	"qwerty123",
	"qwertyuiop",
	"iloveyou",
	"sunshine",
	"princess",
	"football",
	"baseball",
	"welcome1",
	"admin123",
	"letmein1",
	"passw0rd",
	"trustno1",
	"abc12345",
	"11111111",
)

func HashPassword(password string) (string, error) {
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashbytes), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// BurnCompare runs a full bcrypt comparison against a fixed hash and always
// reports false.
func BurnCompare(password string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
	return false
}

// PasswordProblems returns human readable reasons why password is too weak.
// An empty result means the password is acceptable.
func PasswordProblems(password, username string) []string {
	var problems []string

	if len([]rune(password)) < MinPasswordLength {
		problems = append(problems, "This password is too short. It must contain at least 8 characters.")
	}
	if password != "" && isNumeric(password) {
		problems = append(problems, "This password is entirely numeric.")
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		problems = append(problems, "This password is too common.")
	}
	if u := strings.ToLower(strings.TrimSpace(username)); len(u) >= 3 && strings.Contains(strings.ToLower(password), u) {
		problems = append(problems, "The password is too similar to the username.")
	}
	if len(password) > 72 {
		problems = append(problems, "This password is too long. It must contain at most 72 bytes.")
	}

	return problems
}

func toSet(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

package domain

import (
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

type Customer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CPF       *string   `json:"cpf,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewCustomer(name, email string, cpf *string) (*Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationErrorf("customer name is required")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validationErrorf("invalid email %q", email)
	}

	var normalized *string
	if cpf != nil {
		digits := strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) {
				return r
			}
			return -1
		}, *cpf)
		if len(digits) != 11 {
			return nil, validationErrorf("cpf must have 11 digits")
		}
		normalized = &digits
	}

	now := time.Now().UTC()

	return &Customer{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		CPF:       normalized,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

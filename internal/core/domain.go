package core

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"

	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	Role            string
	TransactionType string

	Money struct {
		Cents int64
	}

	// Participant is a person who can join groups, pay for and owe shares of expenses.
	Participant struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		DateOfBirth *Date     `json:"date_of_birth,omitempty"`
		Mobile      string    `json:"mobile,omitempty"`
		Email       string    `json:"email"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	ExpenseGroup struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description,omitempty"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	Permissions struct {
		CanAddExpense    bool `json:"can_add_expense"`
		CanEditExpense   bool `json:"can_edit_expense"`
		CanDeleteExpense bool `json:"can_delete_expense"`
	}

	GroupMember struct {
		ID            string `json:"id"`
		GroupID       string `json:"group_id"`
		ParticipantID string `json:"participant_id"`
		Role          Role   `json:"role"`
		Permissions
		JoinedAt time.Time `json:"joined_at"`
	}

	// SharedExpense is an amount fronted by one participant on behalf of a group.
	// It owns a set of ExpenseSplit rows keyed by ExpenseID.
	SharedExpense struct {
		ID          string          `json:"id"`
		GroupID     string          `json:"group_id"`
		PaidBy      string          `json:"paid_by"`
		Amount      float64         `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description,omitempty"`
		ExpenseDate Date            `json:"expense_date"`
		Type        TransactionType `json:"type"`
		CreatedAt   time.Time       `json:"created_at"`
		UpdatedAt   time.Time       `json:"updated_at"`
	}

	ExpenseSplit struct {
		ID            string     `json:"id"`
		ExpenseID     string     `json:"expense_id"`
		ParticipantID string     `json:"participant_id"`
		Amount        float64    `json:"amount"`
		Settled       bool       `json:"settled"`
		SettledAt     *time.Time `json:"settled_at,omitempty"`
	}

	// Transaction is a record of the personal ledger, independent of groups.
	Transaction struct {
		ID          string          `json:"id"`
		Amount      float64         `json:"amount"`
		Date        Date            `json:"date"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Type        TransactionType `json:"type"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidRole      = errors.New("invalid role")
	ErrEmptyDescription = errors.New("empty description")
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleMember
}

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p Participant) Validate() error {
	v := NewValidationError()
	if strings.TrimSpace(p.Name) == "" {
		v.Add("name", "name is required")
	}
	if strings.TrimSpace(p.Email) == "" {
		v.Add("email", "email is required")
	} else if !strings.Contains(p.Email, "@") {
		v.Add("email", "email is not valid")
	}
	if p.DateOfBirth != nil && !p.DateOfBirth.IsZero() {
		if err := p.DateOfBirth.Validate(); err != nil {
			v.Add("date_of_birth", err.Error())
		}
	}
	return v.Err()
}

func (g ExpenseGroup) Validate() error {
	v := NewValidationError()
	if strings.TrimSpace(g.Name) == "" {
		v.Add("name", "name is required")
	}
	return v.Err()
}

func (t Transaction) Validate() error {
	v := NewValidationError()
	if err := FromDecimal(t.Amount).Validate(); err != nil {
		v.Add("amount", "amount must be greater than zero")
	}
	if err := t.Date.Validate(); err != nil {
		v.Add("date", err.Error())
	}
	if strings.TrimSpace(t.Category) == "" {
		v.Add("category", "category is required")
	}
	if !t.Type.IsValid() {
		v.Add("type", "type must be income or expense")
	}
	if len(t.Description) > 200 {
		v.Add("description", "description too long (max 200 characters)")
	}
	return v.Err()
}

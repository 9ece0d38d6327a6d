package core

import "time"

// Patch types carry the partial fields of an update. Nil pointers leave the
// stored value untouched.
type (
	ParticipantPatch struct {
		Name        *string `json:"name"`
		Email       *string `json:"email"`
		Mobile      *string `json:"mobile"`
		DateOfBirth *Date   `json:"date_of_birth"`
	}

	GroupPatch struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}

	MemberPatch struct {
		Role             *Role `json:"role"`
		CanAddExpense    *bool `json:"can_add_expense"`
		CanEditExpense   *bool `json:"can_edit_expense"`
		CanDeleteExpense *bool `json:"can_delete_expense"`
	}

	ExpensePatch struct {
		PaidBy      *string          `json:"paid_by"`
		Amount      *float64         `json:"amount"`
		Category    *string          `json:"category"`
		Description *string          `json:"description"`
		ExpenseDate *Date            `json:"expense_date"`
		Type        *TransactionType `json:"type"`
	}

	SplitPatch struct {
		Amount    *float64   `json:"amount"`
		Settled   *bool      `json:"settled"`
		SettledAt *time.Time `json:"settled_at"`
	}
)

func (p ParticipantPatch) Apply(dst *Participant) {
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.Email != nil {
		dst.Email = *p.Email
	}
	if p.Mobile != nil {
		dst.Mobile = *p.Mobile
	}
	if p.DateOfBirth != nil {
		dob := *p.DateOfBirth
		dst.DateOfBirth = &dob
	}
}

func (p GroupPatch) Apply(dst *ExpenseGroup) {
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
}

func (p MemberPatch) Apply(dst *GroupMember) {
	if p.Role != nil {
		dst.Role = *p.Role
	}
	if p.CanAddExpense != nil {
		dst.CanAddExpense = *p.CanAddExpense
	}
	if p.CanEditExpense != nil {
		dst.CanEditExpense = *p.CanEditExpense
	}
	if p.CanDeleteExpense != nil {
		dst.CanDeleteExpense = *p.CanDeleteExpense
	}
}

func (p ExpensePatch) Apply(dst *SharedExpense) {
	if p.PaidBy != nil {
		dst.PaidBy = *p.PaidBy
	}
	if p.Amount != nil {
		dst.Amount = *p.Amount
	}
	if p.Category != nil {
		dst.Category = *p.Category
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
	if p.ExpenseDate != nil {
		dst.ExpenseDate = *p.ExpenseDate
	}
	if p.Type != nil {
		dst.Type = *p.Type
	}
}

// Apply merges the patch into dst. Marking a split settled without an
// explicit timestamp stamps now; unsettling clears the timestamp.
func (p SplitPatch) Apply(dst *ExpenseSplit, now time.Time) {
	if p.Amount != nil {
		dst.Amount = *p.Amount
	}
	if p.Settled != nil {
		switch {
		case *p.Settled && !dst.Settled:
			dst.Settled = true
			at := now
			dst.SettledAt = &at
		case !*p.Settled:
			dst.Settled = false
			dst.SettledAt = nil
		}
	}
	if p.SettledAt != nil && dst.Settled {
		at := *p.SettledAt
		dst.SettledAt = &at
	}
}

// Validate rejects patches whose present fields are out of range.
func (p ExpensePatch) Validate() error {
	v := NewValidationError()
	if p.Amount != nil && FromDecimal(*p.Amount).Validate() != nil {
		v.Add("amount", "amount must be greater than zero")
	}
	if p.Type != nil && !p.Type.IsValid() {
		v.Add("type", "type must be income or expense")
	}
	if p.Category != nil && *p.Category == "" {
		v.Add("category", "category is required")
	}
	return v.Err()
}

func (p MemberPatch) Validate() error {
	if p.Role != nil && !p.Role.IsValid() {
		v := NewValidationError()
		v.Add("role", "role must be admin or member")
		return v
	}
	return nil
}

package core

import "strings"

// SplitTolerance is the largest accepted gap between a custom split sum and
// the expense amount.
const SplitTolerance = 0.01

// SplitShare is one participant's portion of an expense before it is stored.
type SplitShare struct {
	ParticipantID string  `json:"participant_id"`
	Amount        float64 `json:"amount"`
	Settled       bool    `json:"settled"`
}

// SplitType selects how an expense amount is divided among group members.
type SplitType string

const (
	SplitEqual  SplitType = "equal"
	SplitCustom SplitType = "custom"
)

// EqualSplit divides amount evenly across members, rounding each share to
// two decimals. The payer's own share is pre-settled. Rounding slack of up to
// (len(members)-1) * 0.005 is left unabsorbed.
func EqualSplit(amount float64, memberIDs []string, payerID string) []SplitShare {
	if len(memberIDs) == 0 {
		return nil
	}
	share := RoundToCents(amount / float64(len(memberIDs)))
	out := make([]SplitShare, 0, len(memberIDs))
	for _, id := range memberIDs {
		out = append(out, SplitShare{
			ParticipantID: id,
			Amount:        share,
			Settled:       id == payerID,
		})
	}
	return out
}

// CustomSplit keeps caller-supplied shares with a positive amount, in input
// order. A share is settled only when its owner is the payer.
func CustomSplit(shares []SplitShare, payerID string) []SplitShare {
	out := make([]SplitShare, 0, len(shares))
	for _, s := range shares {
		if s.Amount <= 0 {
			continue
		}
		out = append(out, SplitShare{
			ParticipantID: s.ParticipantID,
			Amount:        s.Amount,
			Settled:       s.ParticipantID == payerID && s.Amount > 0,
		})
	}
	return out
}

// ExpenseInput is the boundary form of a new shared expense.
type ExpenseInput struct {
	GroupID     string          `json:"group_id"`
	PaidBy      string          `json:"paid_by"`
	Amount      float64         `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	ExpenseDate Date            `json:"expense_date"`
	Type        TransactionType `json:"type"`
	SplitType   SplitType       `json:"split_type"`
	Splits      []SplitShare    `json:"splits"`
}

// Validate runs the submission checks: payer, positive amount, category,
// type and, for custom splits, the sum-of-splits tolerance. Every custom
// entry counts toward the sum, including the ones CustomSplit later drops.
func (in ExpenseInput) Validate() error {
	v := NewValidationError()
	if strings.TrimSpace(in.GroupID) == "" {
		v.Add("group_id", "group is required")
	}
	if strings.TrimSpace(in.PaidBy) == "" {
		v.Add("paid_by", "please select who paid")
	}
	amount := FromDecimal(in.Amount)
	if amount.Validate() != nil {
		v.Add("amount", "please enter a valid amount")
	}
	if strings.TrimSpace(in.Category) == "" {
		v.Add("category", "please select a category")
	}
	if in.Type != "" && !in.Type.IsValid() {
		v.Add("type", "type must be income or expense")
	}
	if in.ExpenseDate.IsZero() {
		v.Add("expense_date", "expense date is required")
	}
	switch in.SplitType {
	case "", SplitEqual:
	case SplitCustom:
		var sum Money
		for _, s := range in.Splits {
			sum = sum.Add(FromDecimal(s.Amount))
		}
		diff := sum.Sub(amount).Cents
		if diff < 0 {
			diff = -diff
		}
		if diff > FromDecimal(SplitTolerance).Cents {
			v.Add("splits", "custom splits must equal the total amount")
		}
	default:
		v.Add("split_type", "split type must be equal or custom")
	}
	return v.Err()
}

// Core returns the expense record the input describes, without id or timestamps.
func (in ExpenseInput) Core() SharedExpense {
	t := in.Type
	if t == "" {
		t = Expense
	}
	return SharedExpense{
		GroupID:     in.GroupID,
		PaidBy:      in.PaidBy,
		Amount:      in.Amount,
		Category:    strings.TrimSpace(in.Category),
		Description: strings.TrimSpace(in.Description),
		ExpenseDate: in.ExpenseDate,
		Type:        t,
	}
}

// Shares applies the split policy for the input against the current member ids.
func (in ExpenseInput) Shares(memberIDs []string) []SplitShare {
	if in.SplitType == SplitCustom {
		return CustomSplit(in.Splits, in.PaidBy)
	}
	return EqualSplit(in.Amount, memberIDs, in.PaidBy)
}

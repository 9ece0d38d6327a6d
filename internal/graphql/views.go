package graphql

import (
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

// The graphql-go default resolver matches fields by json tag, so the views
// carry the schema's camelCase names.

type participantView struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Mobile *string `json:"mobile"`
}

type groupView struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description *string           `json:"description"`
	Members     []participantView `json:"members"`
}

type splitView struct {
	ID            string           `json:"id"`
	ParticipantID string           `json:"participantId"`
	Participant   *participantView `json:"participant"`
	Amount        float64          `json:"amount"`
	Settled       bool             `json:"settled"`
	SettledAt     *string          `json:"settledAt"`
}

type expenseView struct {
	ID          string               `json:"id"`
	GroupID     string               `json:"groupId"`
	PaidBy      string               `json:"paidBy"`
	Payer       *participantView     `json:"payer"`
	Amount      float64              `json:"amount"`
	Category    string               `json:"category"`
	Description *string              `json:"description"`
	ExpenseDate core.Date            `json:"expenseDate"`
	Type        core.TransactionType `json:"type"`
	Splits      []splitView          `json:"splits"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toParticipantView(p core.Participant) participantView {
	return participantView{ID: p.ID, Name: p.Name, Email: p.Email, Mobile: optional(p.Mobile)}
}

func toGroupView(g core.ExpenseGroup, members []services.MemberDetail) groupView {
	v := groupView{ID: g.ID, Name: g.Name, Description: optional(g.Description), Members: []participantView{}}
	for _, m := range members {
		if m.Participant != nil {
			v.Members = append(v.Members, toParticipantView(*m.Participant))
		}
	}
	return v
}

func toExpenseView(e services.ExpenseWithSplits, people map[string]core.Participant) expenseView {
	v := expenseView{
		ID:          e.ID,
		GroupID:     e.GroupID,
		PaidBy:      e.PaidBy,
		Amount:      e.Amount,
		Category:    e.Category,
		Description: optional(e.Description),
		ExpenseDate: e.ExpenseDate,
		Type:        e.Type,
		Splits:      make([]splitView, 0, len(e.Splits)),
	}
	if p, ok := people[e.PaidBy]; ok {
		pv := toParticipantView(p)
		v.Payer = &pv
	}
	for _, sp := range e.Splits {
		sv := splitView{ID: sp.ID, ParticipantID: sp.ParticipantID, Amount: sp.Amount, Settled: sp.Settled}
		if sp.SettledAt != nil {
			sv.SettledAt = optional(sp.SettledAt.UTC().Format(time.RFC3339))
		}
		if p, ok := people[sp.ParticipantID]; ok {
			pv := toParticipantView(p)
			sv.Participant = &pv
		}
		v.Splits = append(v.Splits, sv)
	}
	return v
}

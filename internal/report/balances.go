package report

import (
	"sort"

	"fintrack/internal/core"
)

// settleThreshold is the smallest debt worth reporting, in cents.
const settleThreshold = 1

// ParticipantBalance is one participant's position in a group.
// Lent is what others still owe them, Borrowed what they still owe others.
type ParticipantBalance struct {
	ParticipantID string  `json:"participant_id"`
	Name          string  `json:"name"`
	Lent          float64 `json:"lent"`
	Borrowed      float64 `json:"borrowed"`
	Net           float64 `json:"net"`
}

// DebtEdge says From should pay To the given amount.
type DebtEdge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

type GroupBalances struct {
	GroupID  string               `json:"group_id"`
	Balances []ParticipantBalance `json:"balances"`
	Debts    []DebtEdge           `json:"debts"`
}

// Balances derives who owes whom from the unsettled splits of expense-type
// records. Each unsettled split owned by someone other than the payer is a
// debt from the split owner to the payer. The debt list is simplified by
// greedy matching of the largest debtor with the largest creditor.
// names resolves participant ids; unknown ids are reported as "Unknown".
func Balances(groupID string, expenses []core.SharedExpense, splits []core.ExpenseSplit, names map[string]string) GroupBalances {
	payer := make(map[string]string, len(expenses))
	for _, e := range expenses {
		if e.GroupID != groupID || e.Type == core.Income || e.PaidBy == "" {
			continue
		}
		payer[e.ID] = e.PaidBy
	}

	lent := make(map[string]int64)
	borrowed := make(map[string]int64)
	for _, sp := range splits {
		p, ok := payer[sp.ExpenseID]
		if !ok || sp.Settled || sp.ParticipantID == p {
			continue
		}
		cents := core.FromDecimal(sp.Amount).Cents
		if cents <= 0 {
			continue
		}
		lent[p] += cents
		borrowed[sp.ParticipantID] += cents
	}

	ids := make([]string, 0, len(lent)+len(borrowed))
	seen := make(map[string]bool)
	for _, m := range []map[string]int64{lent, borrowed} {
		for id := range m {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)

	out := GroupBalances{GroupID: groupID, Balances: make([]ParticipantBalance, 0, len(ids)), Debts: []DebtEdge{}}
	type position struct {
		id  string
		net int64
	}
	var debtors, creditors []position
	for _, id := range ids {
		net := lent[id] - borrowed[id]
		name, ok := names[id]
		if !ok {
			name = "Unknown"
		}
		out.Balances = append(out.Balances, ParticipantBalance{
			ParticipantID: id,
			Name:          name,
			Lent:          core.Money{Cents: lent[id]}.Decimal(),
			Borrowed:      core.Money{Cents: borrowed[id]}.Decimal(),
			Net:           core.Money{Cents: net}.Decimal(),
		})
		switch {
		case net < 0:
			debtors = append(debtors, position{id, -net})
		case net > 0:
			creditors = append(creditors, position{id, net})
		}
	}

	byAmount := func(ps []position) {
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].net > ps[j].net })
	}
	byAmount(debtors)
	byAmount(creditors)

	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := min(debtors[i].net, creditors[j].net)
		if amount >= settleThreshold {
			out.Debts = append(out.Debts, DebtEdge{
				From:   debtors[i].id,
				To:     creditors[j].id,
				Amount: core.Money{Cents: amount}.Decimal(),
			})
		}
		debtors[i].net -= amount
		creditors[j].net -= amount
		if debtors[i].net < settleThreshold {
			i++
		}
		if creditors[j].net < settleThreshold {
			j++
		}
	}
	return out
}

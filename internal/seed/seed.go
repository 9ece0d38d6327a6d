// Package seed loads demo data: the sample personal transactions and a
// generated group with members and one shared expense.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/services"

	"github.com/brianvoe/gofakeit/v6"
)

// SampleTransactions returns the five April 2025 ledger records.
func SampleTransactions() []core.Transaction {
	return []core.Transaction{
		{ID: "1", Amount: 2500, Date: core.NewDate(2025, 4, 1), Category: "Salary", Description: "Monthly salary", Type: core.Income},
		{ID: "2", Amount: 120, Date: core.NewDate(2025, 4, 2), Category: "Food & Dining", Description: "Grocery shopping", Type: core.Expense},
		{ID: "3", Amount: 50, Date: core.NewDate(2025, 4, 3), Category: "Transportation", Description: "Gas", Type: core.Expense},
		{ID: "4", Amount: 200, Date: core.NewDate(2025, 4, 5), Category: "Entertainment", Description: "Concert tickets", Type: core.Expense},
		{ID: "5", Amount: 800, Date: core.NewDate(2025, 4, 5), Category: "Housing", Description: "Rent payment", Type: core.Expense},
	}
}

var demoCategories = []string{"Food & Dining", "Transportation", "Entertainment", "Housing", "Shopping"}

type Deps struct {
	Directory    *services.Directory
	Members      *services.MembershipManager
	Ledger       *services.ExpenseLedger
	Transactions *services.TransactionService
}

type Options struct {
	// Participants is the size of the generated group. Defaults to 3.
	Participants int
	// Seed makes the generated names reproducible. Zero picks a random seed.
	Seed int64
}

// Result counts what was created.
type Result struct {
	Transactions int
	Participants int
	Groups       int
	Expenses     int
}

// Load creates the demo data. Sample transactions that already exist are
// skipped, and the group is only generated when no group exists, so loading
// twice into a durable backend does not duplicate anything.
func Load(ctx context.Context, deps Deps, opts Options) (Result, error) {
	var res Result
	for _, tx := range SampleTransactions() {
		if _, err := deps.Transactions.Create(ctx, tx); err != nil {
			if errors.Is(err, core.ErrConflict) {
				continue
			}
			return res, fmt.Errorf("seed transaction %s: %w", tx.ID, err)
		}
		res.Transactions++
	}

	if len(deps.Directory.Groups()) > 0 {
		slog.InfoContext(ctx, "Demo group skipped, groups already exist")
		return res, nil
	}

	n := opts.Participants
	if n <= 0 {
		n = 3
	}
	faker := gofakeit.New(opts.Seed)

	group, err := deps.Directory.CreateGroup(ctx, core.ExpenseGroup{
		Name:        "Weekend in " + faker.City(),
		Description: faker.Sentence(6),
	})
	if err != nil {
		return res, fmt.Errorf("seed group: %w", err)
	}
	res.Groups++

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p, err := deps.Directory.CreateParticipant(ctx, core.Participant{
			Name:   faker.Name(),
			Email:  strings.ToLower(faker.Email()),
			Mobile: faker.Phone(),
		})
		if err != nil {
			return res, fmt.Errorf("seed participant: %w", err)
		}
		res.Participants++

		role := core.RoleMember
		if i == 0 {
			role = core.RoleAdmin
		}
		if _, err := deps.Members.AddMember(ctx, group.ID, services.AddMemberRequest{
			ParticipantID: p.ID,
			Role:          role,
			Permissions:   core.Permissions{CanAddExpense: true, CanEditExpense: i == 0, CanDeleteExpense: i == 0},
		}); err != nil {
			return res, fmt.Errorf("seed member: %w", err)
		}
		ids = append(ids, p.ID)
	}

	if _, err := deps.Ledger.Submit(ctx, core.ExpenseInput{
		GroupID:     group.ID,
		PaidBy:      ids[0],
		Amount:      core.RoundToCents(faker.Price(30, 300)),
		Category:    faker.RandomString(demoCategories),
		Description: faker.Sentence(3),
		ExpenseDate: core.NewDate(2025, 4, 12),
		Type:        core.Expense,
		SplitType:   core.SplitEqual,
	}); err != nil {
		return res, fmt.Errorf("seed expense: %w", err)
	}
	res.Expenses++

	slog.InfoContext(ctx, "Demo data loaded",
		"transactions", res.Transactions,
		"participants", res.Participants,
		"group_id", group.ID)
	return res, nil
}

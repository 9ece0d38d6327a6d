// Package graphql exposes the expense manager over a GraphQL endpoint.
package graphql

import (
	"errors"
	"fmt"

	gql "github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"fintrack/internal/core"
	"fintrack/internal/report"
	"fintrack/internal/services"
)

// Resolver binds the schema to the services.
type Resolver struct {
	Directory  *services.Directory
	Members    *services.MembershipManager
	Ledger     *services.ExpenseLedger
	Aggregator *services.Aggregator
}

var dateScalar = gql.NewScalar(gql.ScalarConfig{
	Name:        "Date",
	Description: "Calendar date formatted as YYYY-MM-DD.",
	Serialize: func(value any) any {
		switch v := value.(type) {
		case core.Date:
			return v.String()
		case *core.Date:
			if v == nil {
				return nil
			}
			return v.String()
		case string:
			return v
		}
		return nil
	},
	ParseValue: func(value any) any {
		s, ok := value.(string)
		if !ok {
			return nil
		}
		d, err := core.ParseDate(s)
		if err != nil {
			return nil
		}
		return d
	},
	ParseLiteral: func(valueAST ast.Value) any {
		sv, ok := valueAST.(*ast.StringValue)
		if !ok {
			return nil
		}
		d, err := core.ParseDate(sv.Value)
		if err != nil {
			return nil
		}
		return d
	},
})

var transactionTypeEnum = gql.NewEnum(gql.EnumConfig{
	Name: "TransactionType",
	Values: gql.EnumValueConfigMap{
		"income":  &gql.EnumValueConfig{Value: core.Income},
		"expense": &gql.EnumValueConfig{Value: core.Expense},
	},
})

// NewSchema builds the schema served at /graphql.
func NewSchema(r *Resolver) (gql.Schema, error) {
	participantType := gql.NewObject(gql.ObjectConfig{
		Name: "Participant",
		Fields: gql.Fields{
			"id":     &gql.Field{Type: gql.NewNonNull(gql.ID)},
			"name":   &gql.Field{Type: gql.NewNonNull(gql.String)},
			"email":  &gql.Field{Type: gql.NewNonNull(gql.String)},
			"mobile": &gql.Field{Type: gql.String},
		},
	})

	groupType := gql.NewObject(gql.ObjectConfig{
		Name: "Group",
		Fields: gql.Fields{
			"id":          &gql.Field{Type: gql.NewNonNull(gql.ID)},
			"name":        &gql.Field{Type: gql.NewNonNull(gql.String)},
			"description": &gql.Field{Type: gql.String},
			"members":     &gql.Field{Type: gql.NewNonNull(gql.NewList(gql.NewNonNull(participantType)))},
		},
	})

	splitType := gql.NewObject(gql.ObjectConfig{
		Name: "ExpenseSplit",
		Fields: gql.Fields{
			"id":            &gql.Field{Type: gql.NewNonNull(gql.ID)},
			"participantId": &gql.Field{Type: gql.NewNonNull(gql.ID)},
			// Null once the participant has been deleted.
			"participant": &gql.Field{Type: participantType},
			"amount":      &gql.Field{Type: gql.NewNonNull(gql.Float)},
			"settled":     &gql.Field{Type: gql.NewNonNull(gql.Boolean)},
			"settledAt":   &gql.Field{Type: gql.String},
		},
	})

	expenseType := gql.NewObject(gql.ObjectConfig{
		Name: "Expense",
		Fields: gql.Fields{
			"id":          &gql.Field{Type: gql.NewNonNull(gql.ID)},
			"groupId":     &gql.Field{Type: gql.ID},
			"paidBy":      &gql.Field{Type: gql.NewNonNull(gql.ID)},
			"payer":       &gql.Field{Type: participantType},
			"amount":      &gql.Field{Type: gql.NewNonNull(gql.Float)},
			"category":    &gql.Field{Type: gql.NewNonNull(gql.String)},
			"description": &gql.Field{Type: gql.String},
			"expenseDate": &gql.Field{Type: gql.NewNonNull(dateScalar)},
			"type":        &gql.Field{Type: gql.NewNonNull(transactionTypeEnum)},
			"splits":      &gql.Field{Type: gql.NewNonNull(gql.NewList(gql.NewNonNull(splitType)))},
		},
	})

	summaryType := gql.NewObject(gql.ObjectConfig{
		Name: "ReportSummary",
		Fields: gql.Fields{
			"totalIncome":  &gql.Field{Type: gql.NewNonNull(gql.Float)},
			"totalExpense": &gql.Field{Type: gql.NewNonNull(gql.Float)},
			"balance":      &gql.Field{Type: gql.NewNonNull(gql.Float)},
		},
	})

	splitInput := gql.NewInputObject(gql.InputObjectConfig{
		Name: "ExpenseSplitInput",
		Fields: gql.InputObjectConfigFieldMap{
			"participantId": &gql.InputObjectFieldConfig{Type: gql.NewNonNull(gql.ID)},
			"amount":        &gql.InputObjectFieldConfig{Type: gql.NewNonNull(gql.Float)},
		},
	})

	expenseInput := gql.NewInputObject(gql.InputObjectConfig{
		Name: "ExpenseInput",
		Fields: gql.InputObjectConfigFieldMap{
			"groupId":     &gql.InputObjectFieldConfig{Type: gql.ID},
			"paidBy":      &gql.InputObjectFieldConfig{Type: gql.NewNonNull(gql.ID)},
			"amount":      &gql.InputObjectFieldConfig{Type: gql.NewNonNull(gql.Float)},
			"category":    &gql.InputObjectFieldConfig{Type: gql.NewNonNull(gql.String)},
			"description": &gql.InputObjectFieldConfig{Type: gql.String},
			"expenseDate": &gql.InputObjectFieldConfig{Type: gql.NewNonNull(dateScalar)},
			"type":        &gql.InputObjectFieldConfig{Type: gql.NewNonNull(transactionTypeEnum)},
			"splits":      &gql.InputObjectFieldConfig{Type: gql.NewNonNull(gql.NewList(gql.NewNonNull(splitInput)))},
		},
	})

	filterArgs := gql.FieldConfigArgument{
		"groupId":       &gql.ArgumentConfig{Type: gql.ID},
		"participantId": &gql.ArgumentConfig{Type: gql.ID},
		"from":          &gql.ArgumentConfig{Type: dateScalar},
		"to":            &gql.ArgumentConfig{Type: dateScalar},
	}

	query := gql.NewObject(gql.ObjectConfig{
		Name: "Query",
		Fields: gql.Fields{
			"participants": &gql.Field{
				Type:    gql.NewNonNull(gql.NewList(gql.NewNonNull(participantType))),
				Resolve: r.participants,
			},
			"groups": &gql.Field{
				Type:    gql.NewNonNull(gql.NewList(gql.NewNonNull(groupType))),
				Resolve: r.groups,
			},
			"expenses": &gql.Field{
				Type:    gql.NewNonNull(gql.NewList(gql.NewNonNull(expenseType))),
				Args:    filterArgs,
				Resolve: r.expenses,
			},
			"reportSummary": &gql.Field{
				Type:    gql.NewNonNull(summaryType),
				Args:    filterArgs,
				Resolve: r.reportSummary,
			},
		},
	})

	mutation := gql.NewObject(gql.ObjectConfig{
		Name: "Mutation",
		Fields: gql.Fields{
			"createParticipant": &gql.Field{
				Type: gql.NewNonNull(participantType),
				Args: gql.FieldConfigArgument{
					"name":   &gql.ArgumentConfig{Type: gql.NewNonNull(gql.String)},
					"email":  &gql.ArgumentConfig{Type: gql.NewNonNull(gql.String)},
					"mobile": &gql.ArgumentConfig{Type: gql.String},
				},
				Resolve: r.createParticipant,
			},
			"createGroup": &gql.Field{
				Type: gql.NewNonNull(groupType),
				Args: gql.FieldConfigArgument{
					"name":        &gql.ArgumentConfig{Type: gql.NewNonNull(gql.String)},
					"description": &gql.ArgumentConfig{Type: gql.String},
				},
				Resolve: r.createGroup,
			},
			"addParticipantToGroup": &gql.Field{
				Type: gql.NewNonNull(groupType),
				Args: gql.FieldConfigArgument{
					"groupId":       &gql.ArgumentConfig{Type: gql.NewNonNull(gql.ID)},
					"participantId": &gql.ArgumentConfig{Type: gql.NewNonNull(gql.ID)},
				},
				Resolve: r.addParticipantToGroup,
			},
			"createExpense": &gql.Field{
				Type: gql.NewNonNull(expenseType),
				Args: gql.FieldConfigArgument{
					"input": &gql.ArgumentConfig{Type: gql.NewNonNull(expenseInput)},
				},
				Resolve: r.createExpense,
			},
			"settleSplit": &gql.Field{
				Type: gql.NewNonNull(expenseType),
				Args: gql.FieldConfigArgument{
					"expenseId":     &gql.ArgumentConfig{Type: gql.NewNonNull(gql.ID)},
					"participantId": &gql.ArgumentConfig{Type: gql.NewNonNull(gql.ID)},
				},
				Resolve: r.settleSplit,
			},
		},
	})

	schema, err := gql.NewSchema(gql.SchemaConfig{Query: query, Mutation: mutation})
	if err != nil {
		return gql.Schema{}, fmt.Errorf("build graphql schema: %w", err)
	}
	return schema, nil
}

var (
	errGroupNotFound   = errors.New("Group not found")
	errExpenseNotFound = errors.New("Expense not found")
)

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func dateArg(args map[string]any, name string) core.Date {
	d, _ := args[name].(core.Date)
	return d
}

func filterFromArgs(args map[string]any) report.Filter {
	return report.Filter{
		GroupID:       stringArg(args, "groupId"),
		ParticipantID: stringArg(args, "participantId"),
		From:          dateArg(args, "from"),
		To:            dateArg(args, "to"),
	}
}

func (r *Resolver) people() map[string]core.Participant {
	ps := r.Directory.Participants()
	idx := make(map[string]core.Participant, len(ps))
	for _, p := range ps {
		idx[p.ID] = p
	}
	return idx
}

func (r *Resolver) groupView(g core.ExpenseGroup) (groupView, error) {
	members, err := r.Members.ListMembers(g.ID)
	if err != nil {
		return groupView{}, err
	}
	return toGroupView(g, members), nil
}

func (r *Resolver) participants(gql.ResolveParams) (any, error) {
	ps := r.Directory.Participants()
	out := make([]participantView, 0, len(ps))
	for _, p := range ps {
		out = append(out, toParticipantView(p))
	}
	return out, nil
}

func (r *Resolver) groups(gql.ResolveParams) (any, error) {
	gs := r.Directory.Groups()
	out := make([]groupView, 0, len(gs))
	for _, g := range gs {
		v, err := r.groupView(g)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Resolver) expenses(p gql.ResolveParams) (any, error) {
	list := r.Ledger.Expenses(filterFromArgs(p.Args))
	people := r.people()
	out := make([]expenseView, 0, len(list))
	for _, e := range list {
		out = append(out, toExpenseView(e, people))
	}
	return out, nil
}

func (r *Resolver) reportSummary(p gql.ResolveParams) (any, error) {
	return r.Aggregator.ReportSummary(filterFromArgs(p.Args)), nil
}

func (r *Resolver) createParticipant(p gql.ResolveParams) (any, error) {
	created, err := r.Directory.CreateParticipant(p.Context, core.Participant{
		Name:   stringArg(p.Args, "name"),
		Email:  stringArg(p.Args, "email"),
		Mobile: stringArg(p.Args, "mobile"),
	})
	if err != nil {
		return nil, err
	}
	return toParticipantView(created), nil
}

func (r *Resolver) createGroup(p gql.ResolveParams) (any, error) {
	created, err := r.Directory.CreateGroup(p.Context, core.ExpenseGroup{
		Name:        stringArg(p.Args, "name"),
		Description: stringArg(p.Args, "description"),
	})
	if err != nil {
		return nil, err
	}
	return toGroupView(created, nil), nil
}

// addParticipantToGroup returns the group unchanged when the participant is
// already a member.
func (r *Resolver) addParticipantToGroup(p gql.ResolveParams) (any, error) {
	groupID := stringArg(p.Args, "groupId")
	g, err := r.Directory.Group(groupID)
	if err != nil {
		return nil, errGroupNotFound
	}
	_, err = r.Members.AddMember(p.Context, groupID, services.AddMemberRequest{
		ParticipantID: stringArg(p.Args, "participantId"),
		Role:          core.RoleMember,
	})
	if err != nil && !errors.Is(err, core.ErrConflict) {
		return nil, err
	}
	return r.groupView(g)
}

func (r *Resolver) createExpense(p gql.ResolveParams) (any, error) {
	raw, _ := p.Args["input"].(map[string]any)
	in := core.ExpenseInput{
		GroupID:     stringArg(raw, "groupId"),
		PaidBy:      stringArg(raw, "paidBy"),
		Category:    stringArg(raw, "category"),
		Description: stringArg(raw, "description"),
		ExpenseDate: dateArg(raw, "expenseDate"),
		SplitType:   core.SplitEqual,
	}
	in.Amount, _ = raw["amount"].(float64)
	in.Type, _ = raw["type"].(core.TransactionType)

	splits, _ := raw["splits"].([]any)
	for _, s := range splits {
		m, _ := s.(map[string]any)
		amount, _ := m["amount"].(float64)
		in.Splits = append(in.Splits, core.SplitShare{ParticipantID: stringArg(m, "participantId"), Amount: amount})
	}
	if len(in.Splits) > 0 {
		in.SplitType = core.SplitCustom
	}

	created, err := r.Ledger.Submit(p.Context, in)
	if err != nil {
		var nf *core.NotFoundError
		if errors.As(err, &nf) && nf.Entity == "group" {
			return nil, errGroupNotFound
		}
		return nil, err
	}
	return toExpenseView(created, r.people()), nil
}

func (r *Resolver) settleSplit(p gql.ResolveParams) (any, error) {
	expenseID := stringArg(p.Args, "expenseId")
	if _, err := r.Ledger.SettleSplit(p.Context, expenseID, stringArg(p.Args, "participantId")); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, errExpenseNotFound
		}
		return nil, err
	}
	e, err := r.Ledger.Expense(expenseID)
	if err != nil {
		return nil, errExpenseNotFound
	}
	return toExpenseView(e, r.people()), nil
}

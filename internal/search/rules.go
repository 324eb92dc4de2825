package search

import (
	"fmt"
	"strings"

	"shopmirror/internal/models"
	apperrors "shopmirror/pkg/errors"

	"github.com/shopspring/decimal"
)

type column struct {
	expr    string
	numeric bool
	// scope wraps the comparison in an EXISTS over a child table.
	scope string
}

const (
	variantScope = "EXISTS (SELECT 1 FROM variants v WHERE v.product_id = products.id AND %s)"
	tagScope     = "EXISTS (SELECT 1 FROM product_tags pt JOIN tags t ON t.id = pt.tag_id WHERE pt.product_id = products.id AND %s)"
)

var ruleColumns = map[string]column{
	"title":                    {expr: "products.title"},
	"vendor":                   {expr: "products.vendor"},
	"type":                     {expr: "products.product_type"},
	"tag":                      {expr: "t.name", scope: tagScope},
	"variant_title":            {expr: "v.title", scope: variantScope},
	"variant_price":            {expr: "v.price", numeric: true, scope: variantScope},
	"variant_compare_at_price": {expr: "v.compare_at_price", numeric: true, scope: variantScope},
	"variant_weight":           {expr: "v.weight", numeric: true, scope: variantScope},
	"variant_inventory":        {expr: "v.inventory_quantity", numeric: true, scope: variantScope},
}

// ruleCondition renders one smart-collection rule as a SQL condition.
func ruleCondition(r models.CollectionRule) (string, []interface{}, error) {
	col, ok := ruleColumns[r.Column]
	if !ok {
		return "", nil, ruleError(r, "unknown column")
	}

	var cond string
	var arg interface{}
	if col.numeric {
		d, err := decimal.NewFromString(strings.TrimSpace(r.Condition))
		if err != nil {
			return "", nil, ruleError(r, "condition is not a number")
		}
		arg = d.InexactFloat64()
		switch r.Relation {
		case "equals":
			cond = col.expr + " = ?"
		case "not_equals":
			cond = col.expr + " <> ?"
		case "greater_than":
			cond = col.expr + " > ?"
		case "less_than":
			cond = col.expr + " < ?"
		default:
			return "", nil, ruleError(r, "relation not supported for numeric column")
		}
	} else {
		value := strings.ToLower(r.Condition)
		lower := "LOWER(" + col.expr + ")"
		switch r.Relation {
		case "equals":
			cond, arg = lower+" = ?", value
		case "not_equals":
			// a product is excluded when any tag equals the condition
			if col.scope == tagScope {
				return "NOT " + fmt.Sprintf(tagScope, lower+" = ?"), []interface{}{value}, nil
			}
			cond, arg = lower+" <> ?", value
		case "starts_with":
			cond, arg = lower+` LIKE ? ESCAPE '\'`, escapeLike(value)+"%"
		case "ends_with":
			cond, arg = lower+` LIKE ? ESCAPE '\'`, "%"+escapeLike(value)
		case "contains":
			cond, arg = lower+` LIKE ? ESCAPE '\'`, "%"+escapeLike(value)+"%"
		default:
			return "", nil, ruleError(r, "relation not supported for text column")
		}
	}

	if col.scope != "" {
		cond = fmt.Sprintf(col.scope, cond)
	}
	return cond, []interface{}{arg}, nil
}

// rulesCondition combines rules with AND, or with OR when disjunctive.
func rulesCondition(rules []models.CollectionRule, disjunctive bool) (string, []interface{}, error) {
	if len(rules) == 0 {
		return "", nil, nil
	}
	joiner := " AND "
	if disjunctive {
		joiner = " OR "
	}
	parts := make([]string, 0, len(rules))
	var args []interface{}
	for _, r := range rules {
		cond, a, err := ruleCondition(r)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+cond+")")
		args = append(args, a...)
	}
	return "(" + strings.Join(parts, joiner) + ")", args, nil
}

func ruleError(r models.CollectionRule, reason string) error {
	return &apperrors.ErrValidation{
		Message: fmt.Sprintf("invalid rule %s %s %q: %s", r.Column, r.Relation, r.Condition, reason),
		Fields:  map[string]string{"column": r.Column, "relation": r.Relation},
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

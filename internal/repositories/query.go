package repositories

import (
	"fmt"
	"strings"

	"notification-service/internal/models"
)

// conditions accumulates WHERE clauses with positional arguments.
type conditions struct {
	clauses []string
	args    []interface{}
}

func (c *conditions) add(clause string, arg interface{}) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, fmt.Sprintf(clause, len(c.args)))
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the clause.
func (c *conditions) page(p models.Page) string {
	p = p.Normalize()
	c.args = append(c.args, p.Limit, p.Offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(c.args)-1, len(c.args))
}

func (c *conditions) applyFilter(prefix string, filter models.MessageFilter, statusColumn string) {
	if filter.Status != "" {
		c.add(statusColumn+"=$%d", filter.Status)
	}
	if filter.CreatedAfter != nil {
		c.add(prefix+"created_at>=$%d", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		c.add(prefix+"created_at<$%d", *filter.CreatedBefore)
	}
}

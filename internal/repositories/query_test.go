package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"notification-service/internal/models"
)

func TestConditionsEmpty(t *testing.T) {
	var cond conditions
	assert.Equal(t, "", cond.where())
	assert.Equal(t, " LIMIT $1 OFFSET $2", cond.page(models.Page{}))
	assert.Equal(t, []interface{}{models.DefaultPageLimit, 0}, cond.args)
}

func TestConditionsFilterNumbering(t *testing.T) {
	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	before := after.Add(24 * time.Hour)

	var cond conditions
	cond.add("br.receiver_id=$%d", 7)
	cond.applyFilter("bm.", models.MessageFilter{
		Status:        models.StatusRead,
		CreatedAfter:  &after,
		CreatedBefore: &before,
	}, "br.status")

	assert.Equal(t, " WHERE br.receiver_id=$1 AND br.status=$2 AND bm.created_at>=$3 AND bm.created_at<$4", cond.where())
	assert.Equal(t, " LIMIT $5 OFFSET $6", cond.page(models.Page{Limit: 500, Offset: 3}))
	assert.Equal(t, []interface{}{7, models.StatusRead, after, before, models.MaxPageLimit, 3}, cond.args)
}

package data

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/target/mmk-autoapply/internal/domain/model"
)

func TestBuildApplicationListQuery(t *testing.T) {
	t.Run("without status", func(t *testing.T) {
		opts := model.ApplicationListOptions{UserID: "u1"}
		opts.Normalize()
		query, args := buildApplicationListQuery(opts)

		assert.Contains(t, query, "LEFT JOIN jobs j ON j.id = a.job_id")
		assert.Contains(t, query, "WHERE a.user_id = $1")
		assert.Contains(t, query, "ORDER BY a.created_at DESC, a.id DESC LIMIT $2 OFFSET $3")
		assert.NotContains(t, query, "a.status =")
		assert.Equal(t, []any{"u1", model.DefaultApplicationListLimit, 0}, args)
	})

	t.Run("with status", func(t *testing.T) {
		status := model.ApplicationStatusApplying
		opts := model.ApplicationListOptions{UserID: "u1", Status: &status, Limit: 5, Offset: 10}
		query, args := buildApplicationListQuery(opts)

		assert.Contains(t, query, "AND a.status = $2")
		assert.Contains(t, query, "LIMIT $3 OFFSET $4")
		assert.Equal(t, []any{"u1", "applying", 5, 10}, args)
	})
}

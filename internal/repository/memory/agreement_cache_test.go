package memory

import (
	"context"
	"testing"
	"time"

	"rent360-scheduling-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgreementCache(t *testing.T) {
	ctx := context.Background()
	c := NewAgreementCache(time.Minute)
	agreement := &entity.RecurringAgreement{Id: uuid.New(), Status: entity.AgreementStatusActive, Amount: 50000}

	_, found := c.Get(ctx, agreement.Id)
	assert.False(t, found)

	c.Save(ctx, agreement)
	agreement.Amount = 1 // later mutation of the caller's copy must not leak in

	got, found := c.Get(ctx, agreement.Id)
	require.True(t, found)
	assert.Equal(t, int64(50000), got.Amount)

	got.Status = entity.AgreementStatusPaused
	again, _ := c.Get(ctx, agreement.Id)
	assert.Equal(t, entity.AgreementStatusActive, again.Status)

	require.NoError(t, c.Invalidate(ctx, agreement.Id))
	_, found = c.Get(ctx, agreement.Id)
	assert.False(t, found)
}

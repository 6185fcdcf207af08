package subscribe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-space/mdx-core/internal/database/dbtest"
	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/pagination"
)

func TestSubscribeIsIdempotent(t *testing.T) {
	svc := NewService(dbtest.Open(t))
	ctx := context.Background()

	first, err := svc.Subscribe(ctx, SubscribeDTO{Email: " Reader@Example.com ", Source: "footer"})
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", first.Email)
	assert.Equal(t, models.SubscriberActive, first.Status)
	require.NotEmpty(t, first.Token)

	again, err := svc.Subscribe(ctx, SubscribeDTO{Email: "reader@example.com"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.Token, again.Token)

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestUnsubscribeThenResubscribe(t *testing.T) {
	svc := NewService(dbtest.Open(t))
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, SubscribeDTO{Email: "a@example.com"})
	require.NoError(t, err)
	_, err = svc.Subscribe(ctx, SubscribeDTO{Email: "b@example.com"})
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(ctx, sub.Token))
	require.NoError(t, svc.Unsubscribe(ctx, sub.Token))

	got, err := svc.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberUnsubscribed, got.Status)
	assert.NotNil(t, got.UnsubscribedAt)

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "b@example.com", active[0].Email)

	back, err := svc.Subscribe(ctx, SubscribeDTO{Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberActive, back.Status)
	assert.Nil(t, back.UnsubscribedAt)

	list, pag, err := svc.List(ctx, models.SubscriberActive, pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.EqualValues(t, 2, pag.Total)
}

func TestSubscribeErrors(t *testing.T) {
	svc := NewService(dbtest.Open(t))
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, SubscribeDTO{Email: "not-an-email"})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	assert.ErrorIs(t, svc.Unsubscribe(ctx, ""), apperr.ErrInvalidRequest)
	assert.ErrorIs(t, svc.Unsubscribe(ctx, "missing"), apperr.ErrNotFound)
}

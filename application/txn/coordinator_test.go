package txn

import (
	"context"
	"errors"
	"testing"

	"socialcore/application/ports"
	"socialcore/infrastructure/persistence/memory"
	pkgerrors "socialcore/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func item(pk, sk string) ports.Item {
	return ports.Item{
		ports.AttrPK: &types.AttributeValueMemberS{Value: pk},
		ports.AttrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

func TestWriteAll_AppliesEverything(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	c := NewCoordinator(store, zap.NewNop())

	err := c.WriteAll(ctx, []ports.WriteOp{
		ports.PutOp(item("CHAT#c", "METADATA"), ports.ItemNotExists()),
		ports.PutOp(item("CHAT#c", "MEMBER#a"), ports.ItemNotExists()),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
}

func TestWriteAll_OneFailureAppliesNeither(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Put(ctx, item("DIRECTCHAT#a#b", "METADATA"), nil))
	c := NewCoordinator(store, zap.NewNop())

	err := c.WriteAll(ctx,
		[]ports.WriteOp{
			ports.PutOp(item("CHAT#c", "METADATA"), ports.ItemNotExists()),
			ports.PutOp(item("DIRECTCHAT#a#b", "METADATA"), ports.ItemNotExists()),
		},
		nil,
		func() error { return pkgerrors.NewAlreadyExistsError("direct chat", "a", "b") },
	)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsAlreadyExists(err))

	chat, err := store.Get(ctx, ports.Key{PK: "CHAT#c", SK: "METADATA"}, ports.StronglyConsistent)
	require.NoError(t, err)
	assert.Nil(t, chat)
	assert.Equal(t, 1, store.Len())
}

func TestWriteAll_FailureWithoutFactoryNamesTheItem(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	c := NewCoordinator(store, zap.NewNop())

	err := c.WriteAll(ctx, []ports.WriteOp{
		ports.PutOp(item("CHAT#c", "METADATA"), ports.ItemNotExists()),
		ports.CheckOp(ports.Key{PK: "USER#a", SK: "PROFILE"}, ports.ItemExists()),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsTransactionFailed(err))

	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, 1, appErr.Details["failedIndex"])
}

func TestWriteAll_ReportsEveryFailedItem(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(memory.NewStore(), zap.NewNop())

	errA := errors.New("a missing")
	errB := errors.New("b missing")
	err := c.WriteAll(ctx,
		[]ports.WriteOp{
			ports.CheckOp(ports.Key{PK: "USER#a", SK: "PROFILE"}, ports.ItemExists()),
			ports.CheckOp(ports.Key{PK: "USER#b", SK: "PROFILE"}, ports.ItemExists()),
		},
		func() error { return errA },
		func() error { return errB },
	)
	assert.Equal(t, []error{errA, errB}, multierr.Errors(err))
}

type storeMock struct {
	mock.Mock
	ports.KeyValueStore
}

func (m *storeMock) TransactWrite(ctx context.Context, ops []ports.WriteOp) error {
	return m.Called(ctx, ops).Error(0)
}

func TestWriteAll_InfrastructureErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("throttled")
	store := &storeMock{}
	store.On("TransactWrite", ctx, mock.Anything).Return(boom)

	err := NewCoordinator(store, zap.NewNop()).WriteAll(ctx, []ports.WriteOp{
		ports.CheckOp(ports.Key{PK: "USER#a", SK: "PROFILE"}, ports.ItemExists()),
	}, func() error { return errors.New("unused") })
	assert.Same(t, boom, err)
	store.AssertExpectations(t)
}

package quota_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/formloom/quota/pkg/plan"
	"github.com/formloom/quota/pkg/subscription"
	"github.com/formloom/quota/pkg/usage"
)

// MockUsageStore is a mock implementation of usage.Store.
type MockUsageStore struct {
	mock.Mock
}

func (m *MockUsageStore) Increment(ctx context.Context, key usage.Key, amount int64) (int64, error) {
	args := m.Called(ctx, key, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUsageStore) Get(ctx context.Context, key usage.Key) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUsageStore) GetMany(ctx context.Context, tenantID, period string, actions []plan.Action) (map[plan.Action]int64, error) {
	args := m.Called(ctx, tenantID, period, actions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[plan.Action]int64), args.Error(1)
}

func (m *MockUsageStore) Reset(ctx context.Context, key usage.Key) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockSubscriptions is a mock implementation of quota.Subscriptions.
type MockSubscriptions struct {
	mock.Mock
}

func (m *MockSubscriptions) Get(ctx context.Context, tenantID string) (*subscription.Subscription, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *MockSubscriptions) SetPlan(ctx context.Context, tenantID, planID string) (*subscription.Subscription, error) {
	args := m.Called(ctx, tenantID, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *MockSubscriptions) Resubscribe(ctx context.Context, tenantID, planID string) (*subscription.Subscription, error) {
	args := m.Called(ctx, tenantID, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

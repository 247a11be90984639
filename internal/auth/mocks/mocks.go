// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks for the auth package interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/authcore/internal/auth"
)

// TestingT is the subset of testing.T the constructors need.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserDirectory is a mock for auth.UserDirectory.
type MockUserDirectory struct {
	mock.Mock
}

// NewMockUserDirectory creates a MockUserDirectory that asserts its expectations on cleanup.
func NewMockUserDirectory(t TestingT) *MockUserDirectory {
	m := &MockUserDirectory{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockUserDirectory) Create(ctx context.Context, principal *auth.Principal) error {
	args := m.Called(ctx, principal)
	return args.Error(0)
}

func (m *MockUserDirectory) Find(ctx context.Context, field auth.LookupField, value string) ([]*auth.Principal, error) {
	args := m.Called(ctx, field, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auth.Principal), args.Error(1)
}

func (m *MockUserDirectory) Update(ctx context.Context, principal *auth.Principal) error {
	args := m.Called(ctx, principal)
	return args.Error(0)
}

func (m *MockUserDirectory) SetSessionStamp(ctx context.Context, id ulid.ULID, stamp string) error {
	args := m.Called(ctx, id, stamp)
	return args.Error(0)
}

func (m *MockUserDirectory) ClearSessionStamp(ctx context.Context, stamp string) error {
	args := m.Called(ctx, stamp)
	return args.Error(0)
}

func (m *MockUserDirectory) ReplacePasswordHash(ctx context.Context, id ulid.ULID, current, replacement string) error {
	args := m.Called(ctx, id, current, replacement)
	return args.Error(0)
}

func (m *MockUserDirectory) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, issuedAt time.Time) error {
	args := m.Called(ctx, id, tokenHash, issuedAt)
	return args.Error(0)
}

func (m *MockUserDirectory) ClearResetToken(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *MockUserDirectory) RedeemResetToken(ctx context.Context, tokenHash, passwordHash string) error {
	args := m.Called(ctx, tokenHash, passwordHash)
	return args.Error(0)
}

// MockSessionStore is a mock for auth.DurableSessionStore.
// It also satisfies auth.SessionStore.
type MockSessionStore struct {
	mock.Mock
}

// NewMockSessionStore creates a MockSessionStore that asserts its expectations on cleanup.
func NewMockSessionStore(t TestingT) *MockSessionStore {
	m := &MockSessionStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSessionStore) Get(ctx context.Context, id string) (*auth.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Session), args.Error(1)
}

func (m *MockSessionStore) Create(ctx context.Context, session *auth.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionStore) DeleteExpired(ctx context.Context, lifetime time.Duration) (int64, error) {
	args := m.Called(ctx, lifetime)
	return args.Get(0).(int64), args.Error(1)
}

// MockPasswordHasher is a mock for auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher that asserts its expectations on cleanup.
func NewMockPasswordHasher(t TestingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) bool {
	args := m.Called(password, hash)
	return args.Bool(0)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	args := m.Called(hash)
	return args.Bool(0)
}

var (
	_ auth.UserDirectory       = (*MockUserDirectory)(nil)
	_ auth.DurableSessionStore = (*MockSessionStore)(nil)
	_ auth.PasswordHasher      = (*MockPasswordHasher)(nil)
)

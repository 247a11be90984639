// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package auth_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/authcore/internal/auth"
)

var _ = Describe("Service backed by PostgreSQL", func() {
	var (
		ctx context.Context
		svc *auth.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)

		hasher := auth.NewArgon2idHasher()
		sessions, err := auth.NewPersistentSessionAuth(
			auth.SessionConfig{Duration: time.Hour}, env.Sessions, env.Principals)
		Expect(err).NotTo(HaveOccurred())
		resets, err := auth.NewResetTokenManager(env.Principals, hasher)
		Expect(err).NotTo(HaveOccurred())
		svc, err = auth.NewAuthService(env.Principals, sessions, resets, hasher)
		Expect(err).NotTo(HaveOccurred())
	})

	It("registers, logs in, resolves, and logs out", func() {
		registered, err := svc.RegisterUser(ctx, "a@x.com", "pw1")
		Expect(err).NotTo(HaveOccurred())

		_, err = svc.RegisterUser(ctx, "a@x.com", "pw2")
		Expect(err).To(MatchError(auth.ErrAlreadyExists))

		_, token, err := svc.Login(ctx, "a@x.com", "pw1")
		Expect(err).NotTo(HaveOccurred())

		p, err := svc.GetUserForSession(ctx, token)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.ID).To(Equal(registered.ID))

		Expect(svc.Logout(ctx, token)).To(Succeed())
		_, err = svc.GetUserForSession(ctx, token)
		Expect(err).To(MatchError(auth.ErrUnauthenticated))
		Expect(svc.Logout(ctx, token)).To(MatchError(auth.ErrNotFound))
	})

	It("resets a password with a single-use token", func() {
		_, err := svc.RegisterUser(ctx, "b@x.com", "old")
		Expect(err).NotTo(HaveOccurred())

		token, err := svc.RequestPasswordReset(ctx, "b@x.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(svc.ResetPassword(ctx, token, "new")).To(Succeed())
		Expect(svc.ResetPassword(ctx, token, "newer")).To(MatchError(auth.ErrNotFound))

		Expect(svc.ValidLogin(ctx, "b@x.com", "new")).To(BeTrue())
		Expect(svc.ValidLogin(ctx, "b@x.com", "old")).To(BeFalse())
	})
})

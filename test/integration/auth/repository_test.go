// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package auth_test

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/authcore/internal/auth"
)

func createPrincipal(ctx context.Context, email string) *auth.Principal {
	p, err := auth.NewPrincipal(email, "$argon2id$test")
	Expect(err).NotTo(HaveOccurred())
	Expect(env.Principals.Create(ctx, p)).To(Succeed())
	return p
}

var _ = Describe("PrincipalRepository", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
	})

	It("finds principals by email regardless of case", func() {
		p := createPrincipal(ctx, "Alice@Example.com")

		found, err := env.Principals.Find(ctx, auth.FieldEmail, "alice@example.COM")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(1))
		Expect(found[0].ID).To(Equal(p.ID))
	})

	It("rejects a second principal with the same email", func() {
		createPrincipal(ctx, "bob@example.com")

		dup, err := auth.NewPrincipal("BOB@example.com", "$argon2id$other")
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Principals.Create(ctx, dup)).To(MatchError(auth.ErrAlreadyExists))
	})

	It("round-trips session stamps and reset tokens", func() {
		p := createPrincipal(ctx, "carol@example.com")
		stamp := auth.HashToken("session")
		p.SessionID = &stamp
		p.SetResetToken(auth.HashToken("reset"), time.Now().UTC().Truncate(time.Microsecond))
		Expect(env.Principals.Update(ctx, p)).To(Succeed())

		bySession, err := auth.FindOne(ctx, env.Principals, auth.FieldSessionID, stamp)
		Expect(err).NotTo(HaveOccurred())
		Expect(bySession.ID).To(Equal(p.ID))

		byReset, err := auth.FindOne(ctx, env.Principals, auth.FieldResetToken, auth.HashToken("reset"))
		Expect(err).NotTo(HaveOccurred())
		Expect(byReset.ResetTokenIssuedAt).NotTo(BeNil())
		Expect(byReset.ResetTokenIssuedAt.Equal(*p.ResetTokenIssuedAt)).To(BeTrue())
	})

	It("redeems a reset token in a single conditional write", func() {
		p := createPrincipal(ctx, "dave@example.com")
		tokenHash := auth.HashToken("reset")
		Expect(env.Principals.SetResetToken(ctx, p.ID, tokenHash, time.Now())).To(Succeed())
		Expect(env.Principals.SetSessionStamp(ctx, p.ID, auth.HashToken("session"))).To(Succeed())

		Expect(env.Principals.RedeemResetToken(ctx, tokenHash, "$argon2id$new")).To(Succeed())
		Expect(env.Principals.RedeemResetToken(ctx, tokenHash, "$argon2id$again")).To(MatchError(auth.ErrNotFound))

		stored, err := auth.FindOne(ctx, env.Principals, auth.FieldID, p.ID.String())
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.PasswordHash).To(Equal("$argon2id$new"))
		Expect(stored.ResetTokenHash).To(BeNil())
		Expect(stored.SessionID).NotTo(BeNil(), "redeem leaves the session stamp alone")
	})

	It("swaps a password hash only while it is current", func() {
		p := createPrincipal(ctx, "erin@example.com")

		Expect(env.Principals.ReplacePasswordHash(ctx, p.ID, "$argon2id$stale", "$argon2id$x")).
			To(MatchError(auth.ErrNotFound))
		Expect(env.Principals.ReplacePasswordHash(ctx, p.ID, p.PasswordHash, "$argon2id$upgraded")).
			To(Succeed())
	})

	It("clears a session stamp only while it is current", func() {
		p := createPrincipal(ctx, "frank@example.com")
		Expect(env.Principals.SetSessionStamp(ctx, p.ID, "first")).To(Succeed())
		Expect(env.Principals.SetSessionStamp(ctx, p.ID, "second")).To(Succeed())

		Expect(env.Principals.ClearSessionStamp(ctx, "first")).To(MatchError(auth.ErrNotFound))
		Expect(env.Principals.ClearSessionStamp(ctx, "second")).To(Succeed())
	})

	It("reports updates of unknown principals as not found", func() {
		p, err := auth.NewPrincipal("ghost@example.com", "$argon2id$test")
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Principals.Update(ctx, p)).To(MatchError(auth.ErrNotFound))
	})
})

var _ = Describe("SessionRepository", func() {
	var (
		ctx   context.Context
		owner *auth.Principal
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
		owner = createPrincipal(ctx, "owner@example.com")
	})

	It("stores sessions under the token hash", func() {
		session, err := auth.NewSession(owner.ID, time.Minute, time.Now().UTC().Truncate(time.Microsecond))
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Sessions.Create(ctx, session)).To(Succeed())

		var plaintext int
		Expect(env.pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM auth_sessions WHERE token_hash = $1", session.ID,
		).Scan(&plaintext)).To(Succeed())
		Expect(plaintext).To(BeZero())

		got, err := env.Sessions.Get(ctx, session.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.UserID).To(Equal(owner.ID))
		Expect(got.Duration).To(Equal(time.Minute))
		Expect(got.CreatedAt.Equal(session.CreatedAt)).To(BeTrue())
	})

	It("deletes sessions exactly once", func() {
		session, err := auth.NewSession(owner.ID, 0, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Sessions.Create(ctx, session)).To(Succeed())

		Expect(env.Sessions.Delete(ctx, session.ID)).To(Succeed())
		Expect(env.Sessions.Delete(ctx, session.ID)).To(MatchError(auth.ErrNotFound))
		_, err = env.Sessions.Get(ctx, session.ID)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("sweeps sessions older than the lifetime", func() {
		old, err := auth.NewSession(owner.ID, time.Minute, time.Now().Add(-time.Hour))
		Expect(err).NotTo(HaveOccurred())
		fresh, err := auth.NewSession(owner.ID, time.Minute, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Sessions.Create(ctx, old)).To(Succeed())
		Expect(env.Sessions.Create(ctx, fresh)).To(Succeed())

		n, err := env.Sessions.DeleteExpired(ctx, 10*time.Minute)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		_, err = env.Sessions.Get(ctx, fresh.ID)
		Expect(err).NotTo(HaveOccurred())
	})

	It("sweeps by each session's recorded duration", func() {
		recorded, err := auth.NewSession(owner.ID, time.Minute, time.Now().Add(-5*time.Minute))
		Expect(err).NotTo(HaveOccurred())
		untimed, err := auth.NewSession(owner.ID, 0, time.Now().Add(-5*time.Minute))
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Sessions.Create(ctx, recorded)).To(Succeed())
		Expect(env.Sessions.Create(ctx, untimed)).To(Succeed())

		n, err := env.Sessions.DeleteExpired(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		_, err = env.Sessions.Get(ctx, untimed.ID)
		Expect(err).NotTo(HaveOccurred())
		_, err = env.Sessions.Get(ctx, recorded.ID)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("rejects sessions for unknown principals", func() {
		session, err := auth.NewSession(ulid.Make(), 0, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Sessions.Create(ctx, session)).NotTo(Succeed())
	})
})

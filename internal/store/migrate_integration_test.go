// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/authcore/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var migrator *store.Migrator

	BeforeAll(func() {
		var err error
		migrator, err = store.NewMigrator(databaseURL)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			Expect(migrator.Close()).To(Succeed())
		})
	})

	It("reports every migration pending on a fresh database", func() {
		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(store.Status{Pending: []uint{1, 2}}))
	})

	It("creates the principal and session tables", func(ctx context.Context) {
		Expect(migrator.Up()).To(Succeed())

		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Name).To(Equal("000002_sessions"))
		Expect(status.Dirty).To(BeFalse())
		Expect(status.Pending).To(BeEmpty())

		Expect(tableExists(ctx, "principals")).To(BeTrue())
		Expect(tableExists(ctx, "auth_sessions")).To(BeTrue())

		var columns int64
		Expect(pool.QueryRow(ctx,
			"SELECT count(*) FROM information_schema.columns WHERE table_name = 'auth_sessions' AND column_name = 'duration_seconds'",
		).Scan(&columns)).To(Succeed())
		Expect(columns).To(Equal(int64(1)))
	})

	It("treats a repeated up as a no-op", func() {
		Expect(migrator.Up()).To(Succeed())
	})

	It("enforces case-insensitive email uniqueness", func(ctx context.Context) {
		_, err := pool.Exec(ctx, "INSERT INTO principals (id, email, password_hash) VALUES ('a', 'Dup@Example.com', 'h')")
		Expect(err).NotTo(HaveOccurred())
		_, err = pool.Exec(ctx, "INSERT INTO principals (id, email, password_hash) VALUES ('b', 'dup@example.COM', 'h')")
		Expect(err).To(HaveOccurred())

		_, err = pool.Exec(ctx, "DELETE FROM principals")
		Expect(err).NotTo(HaveOccurred())
	})

	It("rolls back only the sessions table one step at a time", func(ctx context.Context) {
		Expect(migrator.Steps(-1)).To(Succeed())

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))
		Expect(dirty).To(BeFalse())
		Expect(tableExists(ctx, "auth_sessions")).To(BeFalse())
		Expect(tableExists(ctx, "principals")).To(BeTrue())

		pending, err := migrator.PendingMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(Equal([]uint{2}))

		Expect(migrator.Steps(1)).To(Succeed())
		Expect(tableExists(ctx, "auth_sessions")).To(BeTrue())
	})

	It("drops the whole schema on down", func(ctx context.Context) {
		Expect(migrator.Down()).To(Succeed())

		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(tableExists(ctx, "principals")).To(BeFalse())
	})

	It("forces a version without touching the schema", func(ctx context.Context) {
		Expect(migrator.Force(1)).To(Succeed())

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))
		Expect(dirty).To(BeFalse())
		Expect(tableExists(ctx, "principals")).To(BeFalse())
	})
})

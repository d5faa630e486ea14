package service

import (
	"context"
	"log/slog"

	"github.com/Path-Check/safeplaces-auth/internal/auth/store"
	"github.com/Path-Check/safeplaces-auth/pkg/idm"
)

// Reconcile runs the startup sweep between the IDM and the database.
// Destructive resolution deletes the orphaned side of every mismatch.
func Reconcile(ctx context.Context, provider idm.IdentityStore, st store.Store, destructive bool, logger *slog.Logger) ([]idm.Problem, error) {
	r := idm.NewReconciler(provider, store.NewDirectory(st), logger)
	return r.Run(ctx, destructive)
}

package idm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ProblemKind names a class of drift between the provider and the
// application database.
type ProblemKind string

const (
	ProblemCountMismatch ProblemKind = "count_mismatch"
	ProblemMissingDB     ProblemKind = "missing_db"
	ProblemMissingIDM    ProblemKind = "missing_idm"
)

// Problem is one detected inconsistency.
type Problem struct {
	Kind  ProblemKind
	IDMID string
	DBID  string
	Email string

	// Counts, set on count_mismatch.
	IDMCount int
	DBCount  int
}

// DirectoryUser is the application database's record of a user.
type DirectoryUser struct {
	ID    string
	IDMID string
	Email string
}

// Directory is the application database side of reconciliation.
type Directory interface {
	ListDirectoryUsers(ctx context.Context) ([]DirectoryUser, error)
	DeleteDirectoryUser(ctx context.Context, id string) error
}

// IdentityStore is the provider side of reconciliation; *Connector
// implements it.
type IdentityStore interface {
	Init(ctx context.Context) error
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Reconciler finds and optionally fixes users that exist on only one side.
type Reconciler struct {
	idm    IdentityStore
	dir    Directory
	logger *slog.Logger
}

// NewReconciler builds a Reconciler. A nil logger uses slog.Default.
func NewReconciler(store IdentityStore, dir Directory, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{idm: store, dir: dir, logger: logger.With("component", "reconciler")}
}

// FindProblems compares both sides by provider user id.
func (r *Reconciler) FindProblems(ctx context.Context) ([]Problem, error) {
	idmUsers, err := r.idm.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("idm: reconcile: list provider users: %w", err)
	}
	dbUsers, err := r.dir.ListDirectoryUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("idm: reconcile: list database users: %w", err)
	}

	var problems []Problem
	if len(idmUsers) != len(dbUsers) {
		problems = append(problems, Problem{
			Kind:     ProblemCountMismatch,
			IDMCount: len(idmUsers),
			DBCount:  len(dbUsers),
		})
	}

	inDB := make(map[string]struct{}, len(dbUsers))
	for _, u := range dbUsers {
		inDB[u.IDMID] = struct{}{}
	}
	inIDM := make(map[string]struct{}, len(idmUsers))
	for _, u := range idmUsers {
		inIDM[u.ID] = struct{}{}
	}

	for _, u := range idmUsers {
		if _, ok := inDB[u.ID]; !ok {
			problems = append(problems, Problem{Kind: ProblemMissingDB, IDMID: u.ID, Email: u.Email})
		}
	}
	for _, u := range dbUsers {
		if _, ok := inIDM[u.IDMID]; !ok {
			problems = append(problems, Problem{Kind: ProblemMissingIDM, DBID: u.ID, IDMID: u.IDMID, Email: u.Email})
		}
	}
	return problems, nil
}

// Report logs every problem at warn.
func (r *Reconciler) Report(ctx context.Context, problems []Problem) {
	if len(problems) == 0 {
		r.logger.InfoContext(ctx, "provider and database are in sync")
		return
	}
	for _, p := range problems {
		switch p.Kind {
		case ProblemCountMismatch:
			r.logger.WarnContext(ctx, "user counts differ",
				"idm_count", p.IDMCount,
				"db_count", p.DBCount,
			)
		case ProblemMissingDB:
			r.logger.WarnContext(ctx, "user exists in provider but not in database",
				"idm_id", p.IDMID,
				"email", p.Email,
			)
		case ProblemMissingIDM:
			r.logger.WarnContext(ctx, "user exists in database but not in provider",
				"db_id", p.DBID,
				"idm_id", p.IDMID,
				"email", p.Email,
			)
		}
	}
}

// Resolve deletes the orphaned side of each problem. Problems without the
// id needed to act are only logged. All failures are returned joined.
func (r *Reconciler) Resolve(ctx context.Context, problems []Problem) error {
	var errs []error
	for _, p := range problems {
		switch p.Kind {
		case ProblemMissingDB:
			if p.IDMID == "" {
				r.logger.WarnContext(ctx, "cannot resolve problem without provider id", "kind", p.Kind)
				continue
			}
			if err := r.idm.DeleteUser(ctx, p.IDMID); err != nil {
				errs = append(errs, fmt.Errorf("delete provider user %s: %w", p.IDMID, err))
				continue
			}
			r.logger.InfoContext(ctx, "deleted provider user", "idm_id", p.IDMID, "email", p.Email)

		case ProblemMissingIDM:
			if p.DBID == "" {
				r.logger.WarnContext(ctx, "cannot resolve problem without database id", "kind", p.Kind)
				continue
			}
			if err := r.dir.DeleteDirectoryUser(ctx, p.DBID); err != nil {
				errs = append(errs, fmt.Errorf("delete database user %s: %w", p.DBID, err))
				continue
			}
			r.logger.InfoContext(ctx, "deleted database user", "db_id", p.DBID, "email", p.Email)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("idm: reconcile: %w", errors.Join(errs...))
	}
	return nil
}

// Run primes the provider, finds problems, reports them and, when
// destructive, resolves them.
func (r *Reconciler) Run(ctx context.Context, destructive bool) ([]Problem, error) {
	if err := r.idm.Init(ctx); err != nil {
		return nil, err
	}
	problems, err := r.FindProblems(ctx)
	if err != nil {
		return nil, err
	}
	r.Report(ctx, problems)
	if destructive && len(problems) > 0 {
		if err := r.Resolve(ctx, problems); err != nil {
			return problems, err
		}
	}
	return problems, nil
}

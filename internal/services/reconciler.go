package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/enrollment-service/internal/models"
)

// DefaultReconcileConcurrency bounds sibling work at one level of the tree
const DefaultReconcileConcurrency = 4

// Identified is a persisted child row
type Identified interface {
	GetID() string
}

// Keyed is a submitted child item; an empty key means "create"
type Keyed interface {
	Key() string
}

// ReconcileResult counts the rows a reconcile touched, children included
type ReconcileResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

func (r *ReconcileResult) Add(other ReconcileResult) {
	r.Created += other.Created
	r.Updated += other.Updated
	r.Deleted += other.Deleted
}

func (r ReconcileResult) IsZero() bool {
	return r.Created == 0 && r.Updated == 0 && r.Deleted == 0
}

// ReconcileOps binds one child collection of one parent to the store.
// Create and Update return the counts of whatever nested work they did.
type ReconcileOps[E Identified, I Keyed] struct {
	Kind         string
	DeleteExcept func(ctx context.Context, keepIDs []string) error
	Create       func(ctx context.Context, in I) (ReconcileResult, error)
	Update       func(ctx context.Context, current E, in I) (ReconcileResult, error)
}

// Reconciler runs nested collection syncs with a bounded sibling join
type Reconciler struct {
	limit int
}

func NewReconciler(limit int) *Reconciler {
	if limit <= 0 {
		limit = DefaultReconcileConcurrency
	}
	return &Reconciler{limit: limit}
}

// Reconcile makes the children of one parent match desired. Rows missing
// from desired are deleted first, then every item is created or updated
// concurrently. All sibling errors are returned joined.
func Reconcile[E Identified, I Keyed](ctx context.Context, r *Reconciler, existing []E, desired models.Nested[I], ops ReconcileOps[E, I]) (ReconcileResult, error) {
	var result ReconcileResult
	if !desired.IsSet() {
		return result, nil
	}

	byID := make(map[string]E, len(existing))
	for _, row := range existing {
		byID[row.GetID()] = row
	}

	items := desired.Items()
	keep := make([]string, 0, len(items))
	for _, item := range items {
		key := item.Key()
		if key == "" {
			continue
		}
		if _, ok := byID[key]; !ok {
			return result, fmt.Errorf("%w: %s %s", ErrNestedItemNotFound, ops.Kind, key)
		}
		keep = append(keep, key)
	}

	result.Deleted = len(existing) - len(keep)
	if result.Deleted > 0 {
		if err := ops.DeleteExcept(ctx, keep); err != nil {
			return ReconcileResult{}, fmt.Errorf("failed to delete %s: %w", ops.Kind, err)
		}
	}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(r.limit)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			var (
				child ReconcileResult
				err   error
			)
			if key := item.Key(); key == "" {
				child, err = ops.Create(ctx, item)
			} else {
				child, err = ops.Update(ctx, byID[key], item)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s[%d]: %w", ops.Kind, i, err))
				return nil
			}
			result.Add(child)
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return ReconcileResult{}, errors.Join(errs...)
	}
	return result, nil
}

// txGuard serializes statements on a transaction shared by concurrent
// siblings; a database transaction is bound to a single connection.
type txGuard struct {
	mu sync.Mutex
	tx *gorm.DB
}

func newTxGuard(tx *gorm.DB) *txGuard {
	return &txGuard{tx: tx}
}

func (g *txGuard) run(fn func(tx *gorm.DB) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g.tx)
}

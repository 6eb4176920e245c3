// Package services implements the server-side merge of client operation
// batches into authoritative records.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/opsync/internal/common"
	"github.com/dmitrijs2005/opsync/internal/dbx"
	"github.com/dmitrijs2005/opsync/internal/logging"
	"github.com/dmitrijs2005/opsync/internal/operation"
	"github.com/dmitrijs2005/opsync/internal/schema"
	"github.com/dmitrijs2005/opsync/internal/server/models"
	"github.com/dmitrijs2005/opsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/opsync/internal/timex"
)

// GroupKind classifies how the merge applied one operation group.
type GroupKind string

const (
	GroupAdded    GroupKind = "added"
	GroupModified GroupKind = "modified"
	GroupDeleted  GroupKind = "deleted"
)

// Result reports the outcome of one committed operation group.
type Result struct {
	Kind   GroupKind
	Record *models.Record
}

// MergeService applies batches of client operations to the record store.
// Each (table, item) group commits in its own transaction together with its
// audit log entries; a failing group does not roll back the groups committed
// before it, and the remaining groups are still attempted.
type MergeService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	tables *schema.Registry
	log    logging.Logger
	now    func() timex.Time
}

func NewMergeService(db *sql.DB, repos repomanager.RepositoryManager, tables *schema.Registry, log logging.Logger) *MergeService {
	return &MergeService{
		db:     db,
		repos:  repos,
		tables: tables,
		log:    log,
		now:    timex.Now,
	}
}

// ProcessOperations merges one pushed batch on behalf of a user and
// installation. Operations whose id is already logged are skipped, making
// retried pushes harmless. The returned error joins the failures of all
// failed groups; results cover the committed ones.
func (s *MergeService) ProcessOperations(ctx context.Context, ops []operation.Operation, userID, installationID string) ([]Result, error) {
	for _, op := range ops {
		if op.ID == "" {
			return nil, fmt.Errorf("%w: operation without id", common.ErrInvalidArgument)
		}
	}

	fresh, err := s.dropKnownOperations(ctx, ops)
	if err != nil {
		return nil, err
	}

	groups, order := groupByItem(fresh)

	var results []Result
	var groupErrs []error

	for _, key := range order {
		result, err := s.processGroup(ctx, key, groups[key], userID, installationID)
		if err != nil {
			s.log.Error(ctx, "operation group failed",
				"table", key.TableName, "item", key.ItemID, "error", err)
			groupErrs = append(groupErrs, fmt.Errorf("group %s/%s: %w", key.TableName, key.ItemID, err))
			continue
		}
		results = append(results, result)
	}

	return results, errors.Join(groupErrs...)
}

// dropKnownOperations removes operations already present in the log as well
// as in-batch duplicates.
func (s *MergeService) dropKnownOperations(ctx context.Context, ops []operation.Operation) ([]operation.Operation, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(ops))
	for _, op := range ops {
		ids = append(ids, op.ID)
	}

	known, err := s.repos.Operations(s.db).ExistingIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(ops))
	fresh := make([]operation.Operation, 0, len(ops))
	for _, op := range ops {
		if _, ok := known[op.ID]; ok {
			continue
		}
		if _, ok := seen[op.ID]; ok {
			continue
		}
		seen[op.ID] = struct{}{}
		fresh = append(fresh, op)
	}
	return fresh, nil
}

// groupByItem buckets operations by target record, keeps group arrival order,
// and sorts each group by causal token ascending.
func groupByItem(ops []operation.Operation) (map[operation.GroupKey][]operation.Operation, []operation.GroupKey) {
	groups := make(map[operation.GroupKey][]operation.Operation)
	var order []operation.GroupKey

	for _, op := range ops {
		key := op.GroupKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], op)
	}

	for _, key := range order {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].CreatedAt.Before(group[j].CreatedAt.Time)
		})
	}
	return groups, order
}

func (s *MergeService) processGroup(ctx context.Context, key operation.GroupKey, group []operation.Operation, userID, installationID string) (Result, error) {
	desc, err := s.tables.Lookup(key.TableName)
	if err != nil {
		return Result{}, err
	}

	serverOps := make([]operation.ServerOperation, len(group))
	for i, op := range group {
		serverOps[i] = operation.FromClient(op, userID, installationID)
	}

	now := s.now()
	var result Result

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rec, err := s.applyGroup(ctx, tx, desc, key, serverOps, userID, now)
		if err != nil {
			return err
		}

		for i := range serverOps {
			serverOps[i].ServerUpdatedAt = now
		}
		if err := s.repos.Operations(tx).Append(ctx, serverOps); err != nil {
			return err
		}

		result = Result{Kind: classify(serverOps), Record: rec}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func classify(group []operation.ServerOperation) GroupKind {
	for _, op := range group {
		switch op.Kind {
		case operation.Added:
			return GroupAdded
		case operation.Deleted:
			return GroupDeleted
		}
	}
	return GroupModified
}

// applyGroup mutates the record according to the group's classification and
// downgrades the processing type of discarded operations in place.
func (s *MergeService) applyGroup(ctx context.Context, tx dbx.DBTX, desc *schema.Descriptor, key operation.GroupKey, group []operation.ServerOperation, userID string, now timex.Time) (*models.Record, error) {
	adds, deletes := 0, 0
	for _, op := range group {
		switch op.Kind {
		case operation.Added:
			adds++
		case operation.Deleted:
			deletes++
		}
	}

	switch {
	case adds == 1 && deletes == 0:
		return s.applyAdd(ctx, tx, desc, key, group, userID, now)
	case deletes >= 1 && adds == 0:
		return s.applyDelete(ctx, tx, key, now)
	case adds == 0 && deletes == 0 && len(group) > 0:
		return s.applyModify(ctx, tx, desc, key, group, now)
	default:
		return nil, fmt.Errorf("%w: %d adds and %d deletes for item %s in table %s",
			common.ErrUnknownOperationSequence, adds, deletes, key.ItemID, key.TableName)
	}
}

// applyAdd builds the record from scratch. Field operations in the same group
// are initial values; the record did not exist before this batch, so there is
// nothing to check conflicts against.
func (s *MergeService) applyAdd(ctx context.Context, tx dbx.DBTX, desc *schema.Descriptor, key operation.GroupKey, group []operation.ServerOperation, userID string, now timex.Time) (*models.Record, error) {
	rec := &models.Record{
		TableName:       key.TableName,
		ID:              key.ItemID,
		UserID:          userID,
		ServerUpdatedAt: now,
	}

	for _, op := range group {
		switch op.Kind {
		case operation.Added:
			rec.CreatedAt = op.CreatedAt
			rec.UpdatedAt = op.CreatedAt
		case operation.Modified:
			if err := applyFieldOperation(desc, rec, op.Operation); err != nil {
				return nil, err
			}
			rec.UpdatedAt = op.CreatedAt
		}
	}

	if err := s.repos.Records(tx).Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *MergeService) applyDelete(ctx context.Context, tx dbx.DBTX, key operation.GroupKey, now timex.Time) (*models.Record, error) {
	recRepo := s.repos.Records(tx)

	rec, err := recRepo.FindByID(ctx, key.TableName, key.ItemID)
	if err != nil {
		return nil, err
	}

	rec.DeletedAt = &now
	rec.ServerUpdatedAt = now
	if err := recRepo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *MergeService) applyModify(ctx context.Context, tx dbx.DBTX, desc *schema.Descriptor, key operation.GroupKey, group []operation.ServerOperation, now timex.Time) (*models.Record, error) {
	recRepo := s.repos.Records(tx)
	opsRepo := s.repos.Operations(tx)

	rec, err := recRepo.FindByID(ctx, key.TableName, key.ItemID)
	if err != nil {
		return nil, err
	}

	changed := false
	for i := range group {
		op := &group[i]

		if rec.Deleted() {
			op.ProcessingType = operation.DiscardedDeleted
			continue
		}
		if op.Property == "" {
			return nil, fmt.Errorf("%w: field operation %s without property", common.ErrInvalidOperation, op.ID)
		}

		// Last write wins by causal token: a previously accepted change that
		// is strictly newer keeps the field, regardless of arrival order.
		lastChange, found, err := opsRepo.LastProcessedChange(ctx, key.TableName, key.ItemID, op.Property)
		if err != nil {
			return nil, err
		}
		if found && lastChange.After(op.CreatedAt.Time) {
			op.ProcessingType = operation.DiscardedOutdated
			continue
		}

		if err := applyFieldOperation(desc, rec, op.Operation); err != nil {
			return nil, err
		}
		rec.UpdatedAt = op.CreatedAt
		changed = true
	}

	if changed {
		rec.ServerUpdatedAt = now
		if err := recRepo.Update(ctx, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// applyFieldOperation converts one operation's canonical value into the
// field's native type and assigns it.
func applyFieldOperation(desc *schema.Descriptor, rec *models.Record, op operation.Operation) error {
	if op.Property == "" {
		return fmt.Errorf("%w: field operation %s without property", common.ErrInvalidOperation, op.ID)
	}

	f, ok := desc.Field(op.Property)
	if !ok {
		return fmt.Errorf("%w: table %s has no field %s", common.ErrInvalidOperation, desc.TableName, op.Property)
	}

	canonical := schema.Default(f.Kind)
	if op.Value != nil {
		canonical = *op.Value
	}

	native, err := schema.Decode(f.Kind, canonical)
	if err != nil {
		return err
	}

	rec.SetField(f.Name, native)
	return nil
}

// ListRecords returns one page of a table's records changed at or after
// laterThan, soft-deleted ones included. This is the query behind the pull
// listing endpoint.
func (s *MergeService) ListRecords(ctx context.Context, tableName, userID string, laterThan timex.Time, pageNumber, pageSize int) ([]*models.Record, error) {
	if _, err := s.tables.Lookup(tableName); err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	if pageNumber < 0 {
		pageNumber = 0
	}
	return s.repos.Records(s.db).List(ctx, tableName, userID, laterThan.Time, pageNumber, pageSize)
}

// LastChangedByOthers reports whether an item was changed by any other
// installation at or after laterThan. An unknown installation id always
// yields true: without a sender identity no change can be ruled out as the
// caller's own echo.
func (s *MergeService) LastChangedByOthers(ctx context.Context, tableName, itemID, installationID string, laterThan timex.Time) (bool, error) {
	if installationID == "" {
		return true, nil
	}
	return s.repos.Operations(s.db).ChangedByOthers(ctx, tableName, itemID, installationID, laterThan.Time)
}

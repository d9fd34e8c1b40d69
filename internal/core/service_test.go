package core_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/JonMunkholm/stockroom/internal/core"
	_ "github.com/JonMunkholm/stockroom/internal/core/entities"
	"github.com/JonMunkholm/stockroom/internal/storage/memory"
)

var testNow = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

// faultyStore wraps the memory store and injects failures into its
// transactions.
type faultyStore struct {
	*memory.Store
	failInsert bool
	failAudit  bool
	failAfter  int // inserts allowed before failInsert kicks in
	// staleKeys hides committed natural keys from lookups, as when another
	// transaction commits the same key after the duplicate check.
	staleKeys bool
}

func (f *faultyStore) Begin(ctx context.Context) (core.Tx, error) {
	tx, err := f.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, store: f}, nil
}

type faultyTx struct {
	core.Tx
	store   *faultyStore
	inserts int
}

func (t *faultyTx) InsertRecord(ctx context.Context, def core.EntityDefinition, rec *core.Record) error {
	if err := t.insertFault(); err != nil {
		return err
	}
	return t.Tx.InsertRecord(ctx, def, rec)
}

func (t *faultyTx) InsertRecordIfAbsent(ctx context.Context, def core.EntityDefinition, rec *core.Record) (bool, error) {
	if err := t.insertFault(); err != nil {
		return false, err
	}
	return t.Tx.InsertRecordIfAbsent(ctx, def, rec)
}

func (t *faultyTx) FindByNaturalKey(ctx context.Context, def core.EntityDefinition, key string) (*core.Record, error) {
	if t.store.staleKeys {
		return nil, core.ErrNotFound
	}
	return t.Tx.FindByNaturalKey(ctx, def, key)
}

func (t *faultyTx) insertFault() error {
	t.inserts++
	if t.store.failInsert && t.inserts > t.store.failAfter {
		return errors.New("connection reset by peer")
	}
	return nil
}

func (t *faultyTx) AppendAudit(ctx context.Context, e *core.AuditEntry) error {
	if t.store.failAudit {
		return errors.New("audit_log is unavailable")
	}
	return t.Tx.AppendAudit(ctx, e)
}

// recordingObserver captures observer calls.
type recordingObserver struct {
	mu        sync.Mutex
	mutations []string
	imports   []string
}

func (o *recordingObserver) ObserveMutation(entity string, action core.AuditAction, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mutations = append(o.mutations, entity+"/"+string(action)+"/"+outcome)
}

func (o *recordingObserver) ObserveValidation(string, int, int) {}

func (o *recordingObserver) ObserveImport(entity, outcome string, _, _, _ int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.imports = append(o.imports, entity+"/"+outcome)
}

type ServiceTestSuite struct {
	suite.Suite
	store    *faultyStore
	observer *recordingObserver
	svc      *core.Service
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) SetupTest() {
	s.store = &faultyStore{Store: memory.New()}
	s.observer = &recordingObserver{}
	svc, err := core.NewService(s.store, core.Options{
		Observer: s.observer,
		Clock:    func() time.Time { return testNow },
	})
	s.Require().NoError(err)
	s.svc = svc
	s.ctx = context.Background()
}

func widget(key string) map[string]any {
	return map[string]any{
		"item_id":           key,
		"name":              "Widget",
		"quantity":          5,
		"current_unit_cost": "2.50",
	}
}

func (s *ServiceTestSuite) create(candidate map[string]any) *core.Record {
	res, err := s.svc.CreateRecord(s.ctx, "items", candidate, "u1")
	s.Require().NoError(err)
	s.Require().False(res.Blocked(), "unexpected block: %v", res.Validation.Errors)
	return res.Record
}

func (s *ServiceTestSuite) TestCreate_PersistsWithMetricsAndAudit() {
	res, err := s.svc.CreateRecord(s.ctx, "items", widget("A1"), "u1")
	s.Require().NoError(err)
	s.Require().NotNil(res.Record)

	s.Equal(12.5, res.Record.Fields["total_value"])
	s.Equal(0.0, res.Record.Fields["reorder_cost"])
	s.Equal(testNow, res.Record.CreatedAt)

	history, err := s.svc.RecordHistory(s.ctx, "items", res.Record.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	entry := history[0]
	s.Equal(res.AuditID, entry.ID)
	s.Equal(core.ActionCreate, entry.Action)
	s.Equal("u1", entry.ActorID)
	s.Nil(entry.OldValues)
	s.Equal("A1", entry.NewValues["item_id"])
	s.Equal(12.5, entry.NewValues["total_value"])
	s.Equal([]string{"items/create/success"}, s.observer.mutations)
}

func (s *ServiceTestSuite) TestCreate_WarningsDoNotBlock() {
	c := widget("A1")
	c["quantity"] = 0

	res, err := s.svc.CreateRecord(s.ctx, "items", c, "u1")
	s.Require().NoError(err)
	s.False(res.Blocked())
	s.NotNil(res.Record)
	s.True(res.Validation.HasWarning("quantity"))
}

func (s *ServiceTestSuite) TestCreate_BlockedWritesNothing() {
	c := widget("A1")
	delete(c, "name")
	c["quantity"] = -3

	res, err := s.svc.CreateRecord(s.ctx, "items", c, "u1")
	s.Require().NoError(err)
	s.True(res.Blocked())
	s.Nil(res.Record)
	s.True(res.Validation.HasError("name"))
	s.True(res.Validation.HasError("quantity"))
	s.ErrorIs(res.Err(), core.ErrValidation)
	s.NotErrorIs(res.Err(), core.ErrDuplicate)

	s.Equal(0, s.store.Count("items"))
	s.Equal(0, s.store.AuditLen())
	s.Equal([]string{"items/create/blocked"}, s.observer.mutations)
}

func (s *ServiceTestSuite) TestCreate_DuplicateNaturalKey() {
	first := s.create(widget("A1"))

	res, err := s.svc.CreateRecord(s.ctx, "items", widget("A1"), "u2")
	s.Require().NoError(err)
	s.True(res.Blocked())
	s.Require().Len(res.Validation.Errors, 1)
	s.Equal("item_id", res.Validation.Errors[0].Field)
	s.Contains(res.Validation.Errors[0].Message, first.ID)
	s.ErrorIs(res.Err(), core.ErrDuplicate)
	s.Equal(1, s.store.Count("items"))
}

func (s *ServiceTestSuite) TestCreate_IgnoresUnknownAndDerivedKeys() {
	c := widget("A1")
	c["total_value"] = 1e9
	c["is_admin"] = true

	rec := s.create(c)

	s.Equal(12.5, rec.Fields["total_value"])
	s.NotContains(rec.Fields, "is_admin")
}

func (s *ServiceTestSuite) TestCreate_RequiresActor() {
	_, err := s.svc.CreateRecord(s.ctx, "items", widget("A1"), "")
	s.ErrorIs(err, core.ErrMissingActor)
}

func (s *ServiceTestSuite) TestCreate_ActorFromContext() {
	ctx := core.ContextWithActor(s.ctx, "ctx-user")
	res, err := s.svc.CreateRecord(ctx, "items", widget("A1"), "")
	s.Require().NoError(err)
	s.Require().False(res.Blocked())

	entries, err := s.svc.RecordHistory(s.ctx, "items", res.Record.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("ctx-user", entries[0].ActorID)
}

func (s *ServiceTestSuite) TestUnknownEntity() {
	_, err := s.svc.CreateRecord(s.ctx, "widgets", widget("A1"), "u1")
	s.ErrorIs(err, core.ErrUnknownEntity)

	_, err = s.svc.Validate(s.ctx, "widgets", nil)
	s.ErrorIs(err, core.ErrUnknownEntity)
}

func (s *ServiceTestSuite) TestCreate_AuditFailureRollsBackWrite() {
	s.store.failAudit = true

	res, err := s.svc.CreateRecord(s.ctx, "items", widget("A1"), "u1")
	s.Nil(res)
	s.ErrorIs(err, core.ErrTransactionFailed)
	s.Equal(0, s.store.Count("items"))
	s.Equal([]string{"items/create/failed"}, s.observer.mutations)
}

func (s *ServiceTestSuite) TestCreate_RollbackLogNamesGeneratedID() {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	s.T().Cleanup(func() { slog.SetDefault(prev) })

	s.store.failAudit = true
	_, err := s.svc.CreateRecord(s.ctx, "items", widget("A1"), "u1")
	s.Require().ErrorIs(err, core.ErrTransactionFailed)

	var line struct {
		Msg      string `json:"msg"`
		RecordID string `json:"record_id"`
	}
	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		s.Require().NoError(json.Unmarshal(raw, &line))
		if line.Msg == "mutation rolled back" {
			break
		}
	}
	s.Equal("mutation rolled back", line.Msg)
	s.Len(line.RecordID, 36)
}

func (s *ServiceTestSuite) TestCreate_WriteFailureLeavesNoAudit() {
	s.store.failInsert = true

	_, err := s.svc.CreateRecord(s.ctx, "items", widget("A1"), "u1")
	s.ErrorIs(err, core.ErrTransactionFailed)
	s.Equal(0, s.store.AuditLen())
}

func (s *ServiceTestSuite) TestCreate_KeyTakenAfterCheckIsBlocked() {
	first := s.create(widget("A1"))
	s.store.staleKeys = true

	res, err := s.svc.CreateRecord(s.ctx, "items", widget("A1"), "u1")
	s.Require().NoError(err)
	s.True(res.Blocked())
	s.Nil(res.Record)
	s.True(res.Validation.HasError("item_id"))
	s.ErrorIs(res.Err(), core.ErrDuplicate)

	s.Equal(1, s.store.Count("items"))
	s.Equal(1, s.store.AuditLen())
	got, err := s.svc.GetRecord(s.ctx, "items", first.ID)
	s.Require().NoError(err)
	s.Equal("A1", got.Fields.Text("item_id"))
	s.Equal([]string{"items/create/success", "items/create/blocked"}, s.observer.mutations)
}

func (s *ServiceTestSuite) TestUpdate_KeyTakenAfterCheckIsBlocked() {
	s.create(widget("A1"))
	other := s.create(widget("B1"))
	s.store.staleKeys = true

	res, err := s.svc.UpdateRecord(s.ctx, "items", other.ID, map[string]any{"item_id": "A1"}, "u1")
	s.Require().NoError(err)
	s.True(res.Blocked())
	s.ErrorIs(res.Err(), core.ErrDuplicate)

	got, err := s.svc.GetRecord(s.ctx, "items", other.ID)
	s.Require().NoError(err)
	s.Equal("B1", got.Fields.Text("item_id"))
}

func (s *ServiceTestSuite) TestUpdate_MergesAndRecomputes() {
	rec := s.create(widget("A1"))

	res, err := s.svc.UpdateRecord(s.ctx, "items", rec.ID, map[string]any{"quantity": "8", "notes": "recounted"}, "u2")
	s.Require().NoError(err)
	s.Require().False(res.Blocked())

	updated := res.Record
	s.Equal(rec.ID, updated.ID)
	s.Equal("Widget", updated.Fields["name"], "omitted fields keep stored values")
	s.Equal(8.0, updated.Fields["quantity"])
	s.Equal(20.0, updated.Fields["total_value"])
	s.Equal(rec.CreatedAt, updated.CreatedAt)

	history, err := s.svc.RecordHistory(s.ctx, "items", rec.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	entry := history[0]
	s.Equal(core.ActionUpdate, entry.Action)
	s.Equal("u2", entry.ActorID)
	s.Equal(5.0, entry.OldValues["quantity"])
	s.Equal(8.0, entry.NewValues["quantity"])
}

func (s *ServiceTestSuite) TestUpdate_ClearingRequiredFieldBlocks() {
	rec := s.create(widget("A1"))

	res, err := s.svc.UpdateRecord(s.ctx, "items", rec.ID, map[string]any{"name": nil}, "u1")
	s.Require().NoError(err)
	s.True(res.Blocked())
	s.True(res.Validation.HasError("name"))

	stored, err := s.svc.GetRecord(s.ctx, "items", rec.ID)
	s.Require().NoError(err)
	s.Equal("Widget", stored.Fields["name"])
}

func (s *ServiceTestSuite) TestUpdate_KeepingOwnKeyIsNotDuplicate() {
	rec := s.create(widget("A1"))
	other := s.create(widget("B2"))

	res, err := s.svc.UpdateRecord(s.ctx, "items", rec.ID, widget("A1"), "u1")
	s.Require().NoError(err)
	s.False(res.Blocked())

	res, err = s.svc.UpdateRecord(s.ctx, "items", rec.ID, map[string]any{"item_id": "B2"}, "u1")
	s.Require().NoError(err)
	s.True(res.Blocked())
	s.Contains(res.Validation.Errors[0].Message, other.ID)
}

func (s *ServiceTestSuite) TestUpdate_NotFound() {
	_, err := s.svc.UpdateRecord(s.ctx, "items", "missing", widget("A1"), "u1")
	s.ErrorIs(err, core.ErrNotFound)

	_, err = s.svc.UpdateRecord(s.ctx, "items", "", widget("A1"), "u1")
	s.ErrorIs(err, core.ErrNotFound)
	s.Equal(0, s.store.AuditLen())
}

func (s *ServiceTestSuite) TestDelete() {
	rec := s.create(widget("A1"))

	res, err := s.svc.DeleteRecord(s.ctx, "items", rec.ID, "u3")
	s.Require().NoError(err)
	s.Equal(rec.ID, res.ID)

	_, err = s.svc.GetRecord(s.ctx, "items", rec.ID)
	s.ErrorIs(err, core.ErrNotFound)

	history, err := s.svc.RecordHistory(s.ctx, "items", rec.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(core.ActionDelete, history[0].Action)
	s.Nil(history[0].NewValues)
	s.Equal("A1", history[0].OldValues["item_id"])

	_, err = s.svc.DeleteRecord(s.ctx, "items", rec.ID, "u3")
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *ServiceTestSuite) TestDelete_AuditFailureKeepsRecord() {
	rec := s.create(widget("A1"))
	s.store.failAudit = true

	_, err := s.svc.DeleteRecord(s.ctx, "items", rec.ID, "u1")
	s.ErrorIs(err, core.ErrTransactionFailed)

	_, err = s.svc.GetRecord(s.ctx, "items", rec.ID)
	s.NoError(err)
}

func (s *ServiceTestSuite) TestValidateHasNoSideEffects() {
	res, err := s.svc.Validate(s.ctx, "items", map[string]any{"item_id": "A1", "current_unit_cost": 0})
	s.Require().NoError(err)
	s.False(res.IsValid)
	s.True(res.HasError("name"))
	s.True(res.HasError("current_unit_cost"))
	s.Equal(0, s.store.AuditLen())
}

func (s *ServiceTestSuite) TestCheckDuplicates() {
	rec := s.create(widget("A1"))

	issues, err := s.svc.CheckDuplicates(s.ctx, "items", map[string]any{"item_id": "A1"}, "")
	s.Require().NoError(err)
	s.Len(issues, 1)

	issues, err = s.svc.CheckDuplicates(s.ctx, "items", map[string]any{"item_id": "A1"}, rec.ID)
	s.Require().NoError(err)
	s.Empty(issues)
}

func (s *ServiceTestSuite) TestComputeMetrics() {
	got, err := s.svc.ComputeMetrics("items", map[string]any{
		"quantity": "5", "current_unit_cost": "2.5", "order_quantity": "10", "paid_unit_cost": "not a number",
	})
	s.Require().NoError(err)
	s.Equal(12.5, got["total_value"])
	s.Equal(25.0, got["reorder_cost"], "unparseable paid cost falls back to current cost")

	got, err = s.svc.ComputeMetrics("suppliers", map[string]any{"supplier_code": "S1"})
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *ServiceTestSuite) TestQueryAudit() {
	s.create(widget("A1"))
	s.create(widget("B2"))

	entries, err := s.svc.QueryAudit(s.ctx, core.AuditFilter{Workflow: "items", Action: core.ActionCreate})
	s.Require().NoError(err)
	s.Len(entries, 2)

	_, err = s.svc.QueryAudit(s.ctx, core.AuditFilter{Action: "purge"})
	s.Error(err)
}

func TestListEntities(t *testing.T) {
	svc, err := core.NewService(memory.New(), core.Options{})
	require.NoError(t, err)

	schemas := svc.ListEntities()
	require.Len(t, schemas, 2)
	assert.Equal(t, "items", schemas[0].Key)
	assert.Equal(t, "item_id", schemas[0].NaturalKey)
	assert.Equal(t, "suppliers", schemas[1].Key)
}

func TestNewService_RejectsBadMapping(t *testing.T) {
	_, err := core.NewService(memory.New(), core.Options{
		HeaderMapping: core.HeaderMapping{"items": {"sku": "total_value"}},
	})
	assert.Error(t, err)

	_, err = core.NewService(nil, core.Options{})
	assert.Error(t, err)
}

package syncengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/travellife/internal/common"
	"github.com/dmitrijs2005/travellife/internal/models"
	"github.com/dmitrijs2005/travellife/internal/serverapi"
)

type serverCall struct {
	op       models.OpType
	entity   models.EntityType
	entityID string // clientID for creates
	payload  []byte
}

// fakeServer is an in-memory serverapi.Client with version checks and
// create idempotency, mirroring the backend contract.
type fakeServer struct {
	mu sync.Mutex

	nextID     int
	records    map[string]*serverapi.ServerRecord
	byClientID map[string]string

	calls []serverCall

	// failures makes the next n calls fail with failErr
	failures int
	failErr  error
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		records:    map[string]*serverapi.ServerRecord{},
		byClientID: map[string]string{},
	}
}

func (f *fakeServer) failNext(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
	f.failErr = err
}

// seed installs a record server-side without going through Create.
func (f *fakeServer) seed(t models.EntityType, id string, version int64, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[string(t)+"/"+id] = &serverapi.ServerRecord{
		ID: id, Version: version, UpdatedAt: time.Now().UTC(), Data: data,
	}
}

func (f *fakeServer) record(t models.EntityType, id string) *serverapi.ServerRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.records[string(t)+"/"+id]
	if rec == nil {
		return nil
	}
	cp := *rec
	return &cp
}

func (f *fakeServer) callsOf(op models.OpType) []serverCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []serverCall
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeServer) takeFailure() error {
	if f.failures > 0 {
		f.failures--
		return f.failErr
	}
	return nil
}

func (f *fakeServer) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.takeFailure()
}

func (f *fakeServer) Create(_ context.Context, t models.EntityType, clientID string, payload []byte) (*serverapi.ServerRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	f.calls = append(f.calls, serverCall{op: models.OpCreate, entity: t, entityID: clientID, payload: payload})

	if id, ok := f.byClientID[clientID]; ok {
		cp := *f.records[string(t)+"/"+id]
		return &cp, nil
	}
	f.nextID++
	id := fmt.Sprintf("s-%d", f.nextID)
	rec := &serverapi.ServerRecord{ID: id, Version: 1, UpdatedAt: time.Now().UTC(), Data: payload}
	f.records[string(t)+"/"+id] = rec
	f.byClientID[clientID] = id
	cp := *rec
	return &cp, nil
}

func (f *fakeServer) Update(_ context.Context, t models.EntityType, id string, payload []byte, baseVersion int64, force bool) (*serverapi.ServerRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	f.calls = append(f.calls, serverCall{op: models.OpUpdate, entity: t, entityID: id, payload: payload})

	rec := f.records[string(t)+"/"+id]
	if rec == nil {
		return nil, fmt.Errorf("unknown entity %s/%s: %w", t, id, common.ErrSyncFatal)
	}
	if !force && rec.Version != baseVersion {
		cp := *rec
		return nil, &serverapi.ConflictError{Server: cp}
	}
	rec.Version++
	rec.Data = payload
	rec.UpdatedAt = time.Now().UTC()
	cp := *rec
	return &cp, nil
}

func (f *fakeServer) Delete(_ context.Context, t models.EntityType, id string, baseVersion int64, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	f.calls = append(f.calls, serverCall{op: models.OpDelete, entity: t, entityID: id})

	rec := f.records[string(t)+"/"+id]
	if rec == nil {
		return nil // deleting an already deleted entity succeeds
	}
	if !force && rec.Version != baseVersion {
		cp := *rec
		return &serverapi.ConflictError{Server: cp}
	}
	delete(f.records, string(t)+"/"+id)
	return nil
}

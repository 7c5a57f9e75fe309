package client

import (
	"context"
	"sync"
	"time"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// FlushMode controls when a session transmits applied operations.
type FlushMode int

const (
	// AutoFlushSync transmits each operation as it is applied.
	AutoFlushSync FlushMode = iota
	// ManualFlush buffers operations until Flush or FlushAsync is called.
	ManualFlush
)

const defaultPendingErrorsCap = 1000

// RowError is a per-row failure retained by the session after a failed
// flush. Once extracted with GetPendingErrors it belongs to the caller.
type RowError struct {
	Op  *Insert
	Err error
}

type bufferedOp struct {
	insert *Insert
	key    []byte
	row    []byte
}

// Session buffers row mutations against one client. Applying an operation
// validates it against the schema locally; transmission happens per the
// flush mode. Per-row failures are retained in a bounded buffer for
// inspection after a failed flush.
//
// A session is not safe for concurrent use, except that FlushAsync's
// background flush synchronizes with the session internally.
type Session struct {
	client *Client

	mu               sync.Mutex
	flushMode        FlushMode
	timeout          time.Duration
	ops              []bufferedOp
	pendingErrors    []*RowError
	pendingErrorsCap int
	errorOverflow    bool
	closed           bool
}

// SetFlushMode switches the flush mode. It fails if operations are
// buffered.
func (s *Session) SetFlushMode(m FlushMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ops) != 0 {
		return InvalidArgumentf("cannot change flush mode with %d buffered operations", len(s.ops))
	}
	s.flushMode = m
	return nil
}

// SetTimeoutMillis bounds each flush round trip.
func (s *Session) SetTimeoutMillis(ms int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = time.Duration(ms) * time.Millisecond
}

// SetPendingErrorsCap resizes the bounded pending-error buffer.
func (s *Session) SetPendingErrorsCap(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingErrorsCap = n
}

// Apply validates the operation against its table's schema and either
// buffers it (ManualFlush) or transmits it at once (AutoFlushSync). The
// session owns the operation from here on.
func (s *Session) Apply(ctx context.Context, in *Insert) error {
	if err := in.row.validate(); err != nil {
		return errors.Trace(err)
	}
	key, err := in.row.encodeKey()
	if err != nil {
		return errors.Trace(err)
	}
	row, err := in.row.encodeRow()
	if err != nil {
		return errors.Trace(err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return InvalidArgumentf("session is closed")
	}
	s.ops = append(s.ops, bufferedOp{insert: in, key: key, row: row})
	mode := s.flushMode
	s.mu.Unlock()

	if mode == AutoFlushSync {
		return s.Flush(ctx)
	}
	return nil
}

// Flush transmits all buffered operations, grouped by tablet, and waits for
// the result. Per-row failures are retained as pending errors and reported
// collectively as an IO-class error. Flushing an empty session succeeds.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	ops := s.ops
	s.ops = nil
	timeout := s.timeout
	s.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	failed := 0
	// The session is client-scoped; group first by table, then by tablet.
	for start := 0; start < len(ops); {
		end := start + 1
		table := ops[start].insert.table
		for end < len(ops) && ops[end].insert.table == table {
			end++
		}
		n, err := s.flushTable(ctx, table, ops[start:end])
		if err != nil {
			return errors.Trace(err)
		}
		failed += n
		start = end
	}
	if failed > 0 {
		return IOErrorf("failed to flush data: %d row errors pending", failed)
	}
	return nil
}

// flushTable writes one table's operations tablet by tablet, recording
// per-row failures. It returns the number of failed rows; the error return
// is reserved for failures that prevented any write from being attempted.
func (s *Session) flushTable(ctx context.Context, table *Table, ops []bufferedOp) (int, error) {
	locs, err := s.client.svc.GetTableLocations(ctx, table.Name())
	if err != nil {
		s.recordErrors(ops, err)
		return len(ops), nil
	}
	cache := newMetaCache(locs)

	groups := make(map[uint64][]bufferedOp)
	var order []uint64
	for _, op := range ops {
		loc, ok := cache.tabletForKey(op.key)
		if !ok {
			s.recordErrors([]bufferedOp{op}, NotFoundf("no tablet owns key %q", op.key))
			continue
		}
		if _, seen := groups[loc.TabletID]; !seen {
			order = append(order, loc.TabletID)
		}
		groups[loc.TabletID] = append(groups[loc.TabletID], op)
	}

	failed := 0
	for _, tabletID := range order {
		group := groups[tabletID]
		req := &WriteRequest{
			Table:         table.Name(),
			SchemaVersion: table.SchemaVersion(),
			TabletID:      tabletID,
			Ops:           make([]RowOp, len(group)),
		}
		for i, op := range group {
			req.Ops[i] = RowOp{Key: op.key, Row: op.row}
		}
		resp, err := s.client.svc.Write(ctx, req)
		if err != nil {
			s.recordErrors(group, err)
			failed += len(group)
			continue
		}
		for _, re := range resp.RowErrors {
			s.recordErrors(group[re.Index:re.Index+1], re.Err)
			failed++
		}
	}
	return failed, nil
}

// recordErrors retains one pending error per op, up to the buffer's
// capacity; overflow drops the excess and sets the overflow flag.
func (s *Session) recordErrors(ops []bufferedOp, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		if len(s.pendingErrors) >= s.pendingErrorsCap {
			s.errorOverflow = true
			return
		}
		s.pendingErrors = append(s.pendingErrors, &RowError{Op: op.insert, Err: err})
	}
}

// FlushAsync transmits the buffered operations on a background goroutine and
// reports the outcome to cb. The callback may run on any goroutine; callers
// that need the result must synchronize themselves.
func (s *Session) FlushAsync(cb func(error)) {
	go func() {
		err := s.Flush(context.Background())
		if cb != nil {
			cb(err)
		} else if err != nil {
			log.Error("asynchronous flush failed", zap.Error(err))
		}
	}()
}

// GetPendingErrors drains the retained per-row errors, transferring
// ownership to the caller, and reports whether the bounded buffer
// overflowed since the last drain.
func (s *Session) GetPendingErrors() ([]*RowError, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := s.pendingErrors
	overflowed := s.errorOverflow
	s.pendingErrors = nil
	s.errorOverflow = false
	return errs, overflowed
}

// Close releases the session. Buffered but unflushed operations are
// discarded.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if n := len(s.ops); n != 0 {
		log.Warn("session closed with unflushed operations", zap.Int("count", n))
	}
	s.ops = nil
	s.closed = true
	return nil
}

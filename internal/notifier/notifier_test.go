package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	sentinelerrors "github.com/mplswatch/sentinel/internal/errors"
	"github.com/mplswatch/sentinel/internal/models"
)

type fakeSink struct {
	calls int
	err   error
}

func (f *fakeSink) Send(_ context.Context, _ Message) error {
	f.calls++
	return f.err
}

type fakeStore struct {
	marks []models.AlertRecord
}

func (f *fakeStore) MarkAlert(_ context.Context, _ string, record models.AlertRecord) error {
	f.marks = append(f.marks, record)
	return nil
}

func newCluster() *models.Cluster {
	return &models.Cluster{
		ID:    "cluster-1",
		Label: "Downtown",
		Members: []models.Report{
			{Source: "community-platform"},
			{Source: "microblog-firehose"},
		},
	}
}

func fastConfig() Config {
	return Config{BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, MaxAttempts: 3, DispatchTimeout: time.Second}
}

func TestDispatchNewSucceeds(t *testing.T) {
	sink := &fakeSink{}
	store := &fakeStore{}
	n := New(sink, store, fastConfig(), false)

	cl := newCluster()
	kind, err := n.Dispatch(context.Background(), cl, models.AlertNew)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if kind != models.AlertNew {
		t.Fatalf("kind = %s, want NEW", kind)
	}
	if len(cl.AlertsEmitted) != 1 || cl.AlertsEmitted[0].Kind != models.AlertNew {
		t.Fatalf("expected one NEW alert record, got %+v", cl.AlertsEmitted)
	}
	if len(store.marks) != 1 {
		t.Fatalf("expected one store mark, got %d", len(store.marks))
	}
}

func TestDispatchDowngradesSecondNewToUpdate(t *testing.T) {
	sink := &fakeSink{}
	store := &fakeStore{}
	n := New(sink, store, fastConfig(), false)

	cl := newCluster()
	if _, err := n.Dispatch(context.Background(), cl, models.AlertNew); err != nil {
		t.Fatalf("first Dispatch() error = %v", err)
	}

	kind, err := n.Dispatch(context.Background(), cl, models.AlertNew)
	if err != nil {
		t.Fatalf("second Dispatch() error = %v", err)
	}
	if kind != models.AlertUpdate {
		t.Fatalf("kind = %s, want UPDATE (downgraded)", kind)
	}
	if len(cl.AlertsEmitted) != 2 {
		t.Fatalf("expected 2 alert records, got %d", len(cl.AlertsEmitted))
	}
}

func TestDispatchUpgradesFirstUpdateToNew(t *testing.T) {
	sink := &fakeSink{}
	store := &fakeStore{}
	n := New(sink, store, fastConfig(), false)

	cl := newCluster()
	kind, err := n.Dispatch(context.Background(), cl, models.AlertUpdate)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if kind != models.AlertNew {
		t.Fatalf("kind = %s, want NEW (upgraded from the requested UPDATE)", kind)
	}
}

func TestDispatchMemberCountStrictlyIncreasing(t *testing.T) {
	sink := &fakeSink{}
	store := &fakeStore{}
	n := New(sink, store, fastConfig(), false)

	cl := newCluster()
	if _, err := n.Dispatch(context.Background(), cl, models.AlertNew); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	cl.Members = append(cl.Members, models.Report{Source: "photo-platform"})
	if _, err := n.Dispatch(context.Background(), cl, models.AlertUpdate); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	records := cl.AlertsEmitted
	for i := 1; i < len(records); i++ {
		if records[i].MemberCountAt <= records[i-1].MemberCountAt {
			t.Fatalf("member_count_at_emit not strictly increasing: %+v", records)
		}
	}
}

func TestDispatchPermanentFailureLeavesAlertsEmittedUnchanged(t *testing.T) {
	sink := &fakeSink{err: sentinelerrors.NotifierPermanentError{ClusterID: "cluster-1", Err: errors.New("bad webhook")}}
	store := &fakeStore{}
	n := New(sink, store, fastConfig(), false)

	cl := newCluster()
	_, err := n.Dispatch(context.Background(), cl, models.AlertNew)
	if err != nil {
		t.Fatalf("Dispatch() error = %v, want nil (permanent failures are logged and dropped)", err)
	}
	if len(cl.AlertsEmitted) != 0 {
		t.Fatalf("expected alerts_emitted unchanged, got %+v", cl.AlertsEmitted)
	}
	if sink.calls != 1 {
		t.Fatalf("expected exactly one attempt for a permanent error, got %d", sink.calls)
	}
}

func TestDispatchTransientFailureRetriesThenGivesUp(t *testing.T) {
	sink := &fakeSink{err: sentinelerrors.NotifierTransientError{ClusterID: "cluster-1", Err: errors.New("timeout")}}
	store := &fakeStore{}
	n := New(sink, store, fastConfig(), false)

	cl := newCluster()
	_, err := n.Dispatch(context.Background(), cl, models.AlertNew)
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if sink.calls != fastConfig().MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", fastConfig().MaxAttempts, sink.calls)
	}
	if len(cl.AlertsEmitted) != 0 {
		t.Fatalf("expected alerts_emitted unchanged after a failed dispatch, got %+v", cl.AlertsEmitted)
	}
}

func TestDryRunSkipsStoreWrite(t *testing.T) {
	sink := &fakeSink{}
	store := &fakeStore{}
	n := New(sink, store, fastConfig(), true)

	cl := newCluster()
	if _, err := n.Dispatch(context.Background(), cl, models.AlertNew); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(cl.AlertsEmitted) != 1 {
		t.Fatal("expected in-memory alert record even in dry-run")
	}
	if len(store.marks) != 0 {
		t.Fatalf("expected no store writes in dry-run, got %d", len(store.marks))
	}
}

func TestLogSinkAlwaysSucceeds(t *testing.T) {
	sink := LogSink{}
	if err := sink.Send(context.Background(), Message{ClusterID: "c1", Kind: models.AlertNew}); err != nil {
		t.Fatalf("LogSink.Send() error = %v", err)
	}
}

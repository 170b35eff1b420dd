package data

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
	"github.com/devricklin/feishu-request-relay/internal/biz/repo"
)

func newSQLiteLinkRepo(t *testing.T) repo.LinkRepo {
	t.Helper()
	r, err := NewLinkRepo(DialectSQLite, filepath.Join(t.TempDir(), "nested", "links.db"))
	if err != nil {
		t.Fatalf("Failed to open link repo: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func newTestLink(forwardID, requestID, sender string) *repo.NewLink {
	return &repo.NewLink{
		Forward:   domain.Location{ChatID: "oc_staff", MessageID: forwardID},
		Origin:    domain.Location{ChatID: "p2p_" + sender, MessageID: "om_" + forwardID},
		SenderID:  sender,
		RequestID: requestID,
		Tags:      []string{"hoodie"},
	}
}

func TestLinkRepo_PutAndGet(t *testing.T) {
	r := newSQLiteLinkRepo(t)
	ctx := context.Background()

	link, err := r.Put(ctx, newTestLink("F1", "req1", "ou_a"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if link.Status != domain.LinkPending {
		t.Errorf("Expected pending, got %s", link.Status)
	}

	got, err := r.GetByForward(ctx, domain.Location{ChatID: "oc_staff", MessageID: "F1"})
	if err != nil {
		t.Fatalf("GetByForward failed: %v", err)
	}
	if got.Origin.MessageID != "om_F1" || got.SenderID != "ou_a" || got.RequestID != "req1" {
		t.Errorf("Unexpected link %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "hoodie" {
		t.Errorf("Expected tags to round-trip, got %v", got.Tags)
	}
	if got.ResolvedAt != nil {
		t.Error("Expected no resolved time on a pending link")
	}

	byReq, err := r.GetByRequestID(ctx, "req1")
	if err != nil || byReq.Forward.MessageID != "F1" {
		t.Errorf("GetByRequestID returned %+v (%v)", byReq, err)
	}
}

func TestLinkRepo_PutConflict(t *testing.T) {
	r := newSQLiteLinkRepo(t)
	ctx := context.Background()

	if _, err := r.Put(ctx, newTestLink("F1", "req1", "ou_a")); err != nil {
		t.Fatal(err)
	}
	_, err := r.Put(ctx, newTestLink("F1", "req2", "ou_b"))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	got, _ := r.GetByForward(ctx, domain.Location{ChatID: "oc_staff", MessageID: "F1"})
	if got.SenderID != "ou_a" {
		t.Error("Expected the original link to be kept")
	}
}

func TestLinkRepo_NotFound(t *testing.T) {
	r := newSQLiteLinkRepo(t)
	ctx := context.Background()
	missing := domain.Location{ChatID: "oc_staff", MessageID: "nope"}

	if _, err := r.GetByForward(ctx, missing); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := r.GetByRequestID(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := r.Resolve(ctx, missing, domain.OutcomePositive); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLinkRepo_Resolve(t *testing.T) {
	r := newSQLiteLinkRepo(t)
	ctx := context.Background()
	forward := domain.Location{ChatID: "oc_staff", MessageID: "F1"}
	if _, err := r.Put(ctx, newTestLink("F1", "req1", "ou_a")); err != nil {
		t.Fatal(err)
	}

	link, err := r.Resolve(ctx, forward, domain.OutcomeNegative)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if link.Status != domain.LinkResolvedNegative || link.ResolvedAt == nil {
		t.Errorf("Unexpected resolved link %+v", link)
	}

	again, err := r.Resolve(ctx, forward, domain.OutcomePositive)
	if !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Fatalf("Expected ErrAlreadyResolved, got %v", err)
	}
	if again == nil || again.Status != domain.LinkResolvedNegative {
		t.Errorf("Expected current link with first status, got %+v", again)
	}
}

func TestLinkRepo_ResolveRace(t *testing.T) {
	r := newSQLiteLinkRepo(t)
	ctx := context.Background()
	forward := domain.Location{ChatID: "oc_staff", MessageID: "F1"}
	if _, err := r.Put(ctx, newTestLink("F1", "req1", "ou_a")); err != nil {
		t.Fatal(err)
	}

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome := domain.OutcomePositive
			if i%2 == 1 {
				outcome = domain.OutcomeNegative
			}
			if _, err := r.Resolve(ctx, forward, outcome); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrAlreadyResolved) {
				t.Errorf("Unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Expected exactly one resolution to win, got %d", wins)
	}
}

func TestLinkRepo_Lists(t *testing.T) {
	r := newSQLiteLinkRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lr := r.(*linkRepo)
	for i, id := range []string{"F1", "F2", "F3"} {
		at := base.Add(time.Duration(i) * time.Minute)
		lr.now = func() time.Time { return at }
		sender := "ou_a"
		if id == "F2" {
			sender = "ou_b"
		}
		if _, err := r.Put(ctx, newTestLink(id, "req"+id, sender)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.Resolve(ctx, domain.Location{ChatID: "oc_staff", MessageID: "F1"}, domain.OutcomePositive); err != nil {
		t.Fatal(err)
	}

	bySender, err := r.ListBySender(ctx, "ou_a", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(bySender) != 2 || bySender[0].Forward.MessageID != "F3" || bySender[1].Forward.MessageID != "F1" {
		t.Errorf("Expected F3, F1 newest first, got %+v", bySender)
	}

	pending, err := r.ListByStatus(ctx, domain.LinkPending, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Forward.MessageID != "F3" {
		t.Errorf("Expected newest pending F3 with limit 1, got %+v", pending)
	}
}

func TestLinkRepo_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS links").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_links_sender").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_links_status").WillReturnResult(sqlmock.NewResult(0, 0))

	r, err := NewLinkRepoWithDB(db, DialectPostgres)
	if err != nil {
		t.Fatalf("Failed to create repo: %v", err)
	}
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO links .* VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, 0\)`).
		WithArgs("oc_staff", "F1", "p2p_ou_a", "om_F1", "ou_a", "req1", `["hoodie"]`, "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if _, err := r.Put(ctx, newTestLink("F1", "req1", "ou_a")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	mock.ExpectExec("INSERT INTO links").WillReturnResult(sqlmock.NewResult(0, 0))
	if _, err := r.Put(ctx, newTestLink("F1", "req1", "ou_a")); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}

	columns := []string{"forward_chat_id", "forward_msg_id", "origin_chat_id", "origin_msg_id",
		"sender_id", "request_id", "tags", "status", "created_at", "resolved_at"}

	mock.ExpectExec(`UPDATE links SET status = \$1, resolved_at = \$2 WHERE forward_chat_id = \$3`).
		WithArgs("resolved_positive", sqlmock.AnyArg(), "oc_staff", "F1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM links WHERE forward_chat_id = \$1 AND forward_msg_id = \$2`).
		WithArgs("oc_staff", "F1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("oc_staff", "F1", "p2p_ou_a", "om_F1", "ou_a", "req1", `["hoodie"]`, "resolved_negative", int64(1700000000000), int64(1700000060000)))

	link, err := r.Resolve(ctx, domain.Location{ChatID: "oc_staff", MessageID: "F1"}, domain.OutcomePositive)
	if !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Fatalf("Expected ErrAlreadyResolved, got %v", err)
	}
	if link.Status != domain.LinkResolvedNegative || link.ResolvedAt == nil {
		t.Errorf("Unexpected link %+v", link)
	}

	mock.ExpectQuery(`SELECT .* FROM links WHERE request_id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(columns))
	if _, err := r.GetByRequestID(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	mock.ExpectQuery(`SELECT .* FROM links WHERE status = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("pending", 50).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("oc_staff", "F2", "p2p_ou_b", "om_F2", "ou_b", "req2", `[]`, "pending", int64(1700000000000), int64(0)))
	pending, err := r.ListByStatus(ctx, domain.LinkPending, 0)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(pending) != 1 || pending[0].RequestID != "req2" || pending[0].ResolvedAt != nil {
		t.Errorf("Unexpected links %+v", pending)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestRebind(t *testing.T) {
	pg := &linkRepo{dialect: DialectPostgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("Unexpected postgres query %q", got)
	}
	lite := &linkRepo{dialect: DialectSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("Unexpected sqlite query %q", got)
	}
}

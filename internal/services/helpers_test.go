package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"smartspend/internal/core"
	"smartspend/internal/storage"
)

func newTestStorage(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *storage.SQLiteRepository) core.User {
	t.Helper()
	user := core.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", Name: "Test User"}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func accountBalance(t *testing.T, repo *storage.SQLiteRepository, userID, accountID string) int64 {
	t.Helper()
	account, err := repo.GetAccount(context.Background(), userID, accountID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	return account.Balance.Cents
}

// fakePublisher records invalidation events in-process.
type fakePublisher struct {
	published [][]string
	fail      bool
}

func (p *fakePublisher) PublishInvalidation(ctx context.Context, userID string, accountIDs []string) error {
	if p.fail {
		return errors.New("publish failed")
	}
	p.published = append(p.published, accountIDs)
	return nil
}

type sentMail struct {
	to      string
	subject string
	body    string
}

// fakeDispatcher records sent mail instead of delivering it.
type fakeDispatcher struct {
	sent []sentMail
	fail bool
}

func (d *fakeDispatcher) Send(ctx context.Context, to, subject, body string) error {
	if d.fail {
		return errors.New("send failed")
	}
	d.sent = append(d.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/avelkov/licbroker/internal/common"
	"github.com/avelkov/licbroker/internal/dbx"
	"github.com/avelkov/licbroker/internal/logging"
	"github.com/avelkov/licbroker/internal/server/models"
	recordsrepo "github.com/avelkov/licbroker/internal/server/repositories/records"
	rprepo "github.com/avelkov/licbroker/internal/server/repositories/relyingparties"
	usersrepo "github.com/avelkov/licbroker/internal/server/repositories/users"
	"github.com/avelkov/licbroker/internal/server/upstream"
)

// --- shared fakes ---

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger { return n }

type fakeRecordsRepo struct {
	store map[string]*models.EntitlementRecord

	upsertErr error
	getErr    error
	deleteErr error

	deletes int
}

func newFakeRecordsRepo() *fakeRecordsRepo {
	return &fakeRecordsRepo{store: make(map[string]*models.EntitlementRecord)}
}

func (f *fakeRecordsRepo) Upsert(ctx context.Context, pseudonym, content string) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if rec, ok := f.store[pseudonym]; ok {
		now := time.Now()
		rec.Content = content
		rec.UpdatedAt = &now
		return nil
	}
	f.store[pseudonym] = &models.EntitlementRecord{
		Pseudonym: pseudonym,
		Content:   content,
		CreatedAt: time.Now(),
	}
	return nil
}

func (f *fakeRecordsRepo) Get(ctx context.Context, pseudonym string) (*models.EntitlementRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.store[pseudonym]
	if !ok {
		return nil, common.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRecordsRepo) Delete(ctx context.Context, pseudonym string) error {
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.store, pseudonym)
	return nil
}

type fakeUsersRepo struct {
	users map[string]*models.User      // keyed by username
	attrs map[string]map[string]string // keyed by user id

	deleteErr   error
	setAttrErr  error
	removeErr   error
	getAttrsErr error

	deletedIDs []string
}

func newFakeUsersRepo(users ...*models.User) *fakeUsersRepo {
	f := &fakeUsersRepo{
		users: make(map[string]*models.User),
		attrs: make(map[string]map[string]string),
	}
	for _, u := range users {
		f.users[u.UserName] = u
	}
	return f
}

func (f *fakeUsersRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	f.users[user.UserName] = user
	return user, nil
}

func (f *fakeUsersRepo) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	u, ok := f.users[userName]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) Delete(ctx context.Context, userID string) error {
	f.deletedIDs = append(f.deletedIDs, userID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for name, u := range f.users {
		if u.ID == userID {
			delete(f.users, name)
		}
	}
	delete(f.attrs, userID)
	return nil
}

func (f *fakeUsersRepo) SetAttribute(ctx context.Context, userID, name, value string) error {
	if f.setAttrErr != nil {
		return f.setAttrErr
	}
	if f.attrs[userID] == nil {
		f.attrs[userID] = make(map[string]string)
	}
	f.attrs[userID][name] = value
	return nil
}

func (f *fakeUsersRepo) RemoveAttributesByPrefix(ctx context.Context, userID, prefix string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	for name := range f.attrs[userID] {
		if strings.HasPrefix(name, prefix) {
			delete(f.attrs[userID], name)
		}
	}
	return nil
}

func (f *fakeUsersRepo) GetAttributesByPrefix(ctx context.Context, userID, prefix string) (map[string]string, error) {
	if f.getAttrsErr != nil {
		return nil, f.getAttrsErr
	}
	out := make(map[string]string)
	for name, value := range f.attrs[userID] {
		if strings.HasPrefix(name, prefix) {
			out[name] = value
		}
	}
	return out, nil
}

type fakeRelyingPartiesRepo struct {
	rps []*models.RelyingParty
	err error
}

func (f *fakeRelyingPartiesRepo) ListByClientID(ctx context.Context, clientID string) ([]*models.RelyingParty, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.RelyingParty
	for _, rp := range f.rps {
		if rp.ClientID == clientID {
			out = append(out, rp)
		}
	}
	return out, nil
}

type fakeRepoManager struct {
	rec *fakeRecordsRepo
	usr *fakeUsersRepo
	rp  *fakeRelyingPartiesRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Records(db dbx.DBTX) recordsrepo.Repository   { return m.rec }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.usr }
func (m *fakeRepoManager) RelyingParties(db dbx.DBTX) rprepo.Repository { return m.rp }

type fakeFetcher struct {
	result *upstream.Result
	err    error

	calls     int
	lastQuery upstream.Query
}

func (f *fakeFetcher) Fetch(ctx context.Context, q upstream.Query) (*upstream.Result, error) {
	f.calls++
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

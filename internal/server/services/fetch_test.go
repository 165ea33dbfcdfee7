package services

import (
	"context"
	"strings"
	"testing"

	"github.com/avelkov/licbroker/internal/common"
	"github.com/avelkov/licbroker/internal/pseudonym"
	sc "github.com/avelkov/licbroker/internal/server/config"
	"github.com/avelkov/licbroker/internal/server/models"
	"github.com/avelkov/licbroker/internal/server/upstream"
	"github.com/stretchr/testify/require"
)

func federatedUser() *models.User {
	alias := "vidis-idp"
	return &models.User{
		ID:       "u-1",
		UserName: "alice",
		IdpAlias: &alias,
		SchoolID: "DE-BY-12345",
		StateID:  "DE-BY",
	}
}

func testRelyingParty() *models.RelyingParty {
	return &models.RelyingParty{
		ID:               "rp-1",
		ClientID:         "school-portal",
		HashAlgorithm:    string(pseudonym.HMACSHA256),
		Salt:             "pepper",
		SectorIdentifier: "https://rp.example.org",
	}
}

func testFetchConfig() *sc.Config {
	cfg := &sc.Config{}
	cfg.LoadDefaults()
	cfg.UpstreamBaseURL = "https://licences.example.org"
	cfg.UpstreamAPIKey = "key-123"
	return cfg
}

type fetchFixture struct {
	svc     *FetchService
	cache   *CacheService
	rm      *fakeRepoManager
	fetcher *fakeFetcher
}

func newFetchFixture(t *testing.T, fetcher *fakeFetcher, users *fakeUsersRepo, rps ...*models.RelyingParty) *fetchFixture {
	t.Helper()
	db, mock := newSQLMockDB(t)
	// Transactions open and close in flow order; the exact count varies per
	// scenario, so accept any balanced sequence.
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 4; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}

	rm := &fakeRepoManager{
		rec: newFakeRecordsRepo(),
		usr: users,
		rp:  &fakeRelyingPartiesRepo{rps: rps},
	}
	cache := NewCacheService(db, rm, nopLogger{})
	svc := NewFetchService(db, rm, fetcher, cache, testFetchConfig(), nopLogger{})
	return &fetchFixture{svc: svc, cache: cache, rm: rm, fetcher: fetcher}
}

func TestAttachOnLogin_Success(t *testing.T) {
	payload := strings.Repeat("x", 260)
	fetcher := &fakeFetcher{result: &upstream.Result{HasEntitlements: true, Payload: payload}}
	fx := newFetchFixture(t, fetcher, newFakeUsersRepo(federatedUser()), testRelyingParty())

	require.NoError(t, fx.svc.AttachOnLogin(context.Background(), "alice", "school-portal"))

	// Query carries the user's linked identifiers.
	require.Equal(t, "u-1", fetcher.lastQuery.UserID)
	require.Equal(t, "DE-BY", fetcher.lastQuery.StateID)
	require.Equal(t, "DE-BY-12345", fetcher.lastQuery.SchoolID)

	// Profile holds the payload in two bounded chunks, no bare-key chunk.
	attrs := fx.rm.usr.attrs["u-1"]
	require.Len(t, attrs, 2)
	require.Len(t, attrs["vidis_licence1"], 255)
	require.Len(t, attrs["vidis_licence2"], 5)
	require.NotContains(t, attrs, "vidis_licence")

	// Cache record sits under the derived pseudonym with the raw payload.
	p, err := pseudonym.Generate("u-1", testRelyingParty().PseudonymConfig())
	require.NoError(t, err)
	rec, err := fx.cache.Get(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, payload, rec.Content)

	// The chunked profile value reconstructs exactly.
	got, err := fx.svc.ReadEntitlement(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestAttachOnLogin_Reentrant(t *testing.T) {
	long := strings.Repeat("a", 600)
	fetcher := &fakeFetcher{result: &upstream.Result{HasEntitlements: true, Payload: long}}
	fx := newFetchFixture(t, fetcher, newFakeUsersRepo(federatedUser()), testRelyingParty())
	require.NoError(t, fx.svc.AttachOnLogin(context.Background(), "alice", "school-portal"))
	require.Len(t, fx.rm.usr.attrs["u-1"], 3)

	// A later login with a shorter payload must not leave stale chunks.
	db2, mock2 := newSQLMockDB(t)
	mock2.MatchExpectationsInOrder(false)
	for i := 0; i < 4; i++ {
		mock2.ExpectBegin()
		mock2.ExpectCommit()
	}
	fetcher2 := &fakeFetcher{result: &upstream.Result{HasEntitlements: true, Payload: "short"}}
	cache2 := NewCacheService(db2, fx.rm, nopLogger{})
	svc2 := NewFetchService(db2, fx.rm, fetcher2, cache2, testFetchConfig(), nopLogger{})

	require.NoError(t, svc2.AttachOnLogin(context.Background(), "alice", "school-portal"))
	attrs := fx.rm.usr.attrs["u-1"]
	require.Len(t, attrs, 1)
	require.Equal(t, "short", attrs["vidis_licence1"])

	got, err := svc2.ReadEntitlement(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "short", got)
}

func TestAttachOnLogin_UpstreamNotConfigured(t *testing.T) {
	db, _ := newSQLMockDB(t)
	cfg := testFetchConfig()
	cfg.UpstreamBaseURL = ""

	rm := &fakeRepoManager{rec: newFakeRecordsRepo(), usr: newFakeUsersRepo(federatedUser())}
	svc := NewFetchService(db, rm, &fakeFetcher{}, NewCacheService(db, rm, nopLogger{}), cfg, nopLogger{})

	err := svc.AttachOnLogin(context.Background(), "alice", "school-portal")
	require.ErrorIs(t, err, common.ErrConfiguration)
}

func TestAttachOnLogin_UnknownUser(t *testing.T) {
	fetcher := &fakeFetcher{result: &upstream.Result{HasEntitlements: true, Payload: "p"}}
	fx := newFetchFixture(t, fetcher, newFakeUsersRepo(), testRelyingParty())

	err := fx.svc.AttachOnLogin(context.Background(), "ghost", "school-portal")
	require.ErrorIs(t, err, common.ErrNotFound)
	require.Zero(t, fetcher.calls, "no upstream call without a user")
}

func TestAttachOnLogin_LocalUserDenied(t *testing.T) {
	local := &models.User{ID: "u-2", UserName: "bob"}
	fetcher := &fakeFetcher{result: &upstream.Result{HasEntitlements: true, Payload: "p"}}
	fx := newFetchFixture(t, fetcher, newFakeUsersRepo(local), testRelyingParty())

	err := fx.svc.AttachOnLogin(context.Background(), "bob", "school-portal")
	require.ErrorIs(t, err, common.ErrNotFound)
	require.Zero(t, fetcher.calls, "no upstream call without an external identity")
}

func TestAttachOnLogin_UpstreamFailureDenies(t *testing.T) {
	fetcher := &fakeFetcher{err: common.ErrUpstreamUnavailable}
	fx := newFetchFixture(t, fetcher, newFakeUsersRepo(federatedUser()), testRelyingParty())

	err := fx.svc.AttachOnLogin(context.Background(), "alice", "school-portal")
	require.ErrorIs(t, err, common.ErrUpstreamUnavailable)
	require.Empty(t, fx.rm.usr.attrs["u-1"], "no partial writes after a failed fetch")
	require.Empty(t, fx.rm.rec.store)
}

func TestAttachOnLogin_NoEntitlements(t *testing.T) {
	fetcher := &fakeFetcher{result: &upstream.Result{HasEntitlements: false}}
	fx := newFetchFixture(t, fetcher, newFakeUsersRepo(federatedUser()), testRelyingParty())

	err := fx.svc.AttachOnLogin(context.Background(), "alice", "school-portal")
	require.ErrorIs(t, err, common.ErrNotFound)
	require.Empty(t, fx.rm.usr.attrs["u-1"], "denied flow must not write profile attributes")
	require.Empty(t, fx.rm.rec.store, "denied flow must not create a cache record")
}

func TestAttachOnLogin_AmbiguousRelyingParty(t *testing.T) {
	rp2 := testRelyingParty()
	rp2.ID = "rp-2"
	fetcher := &fakeFetcher{result: &upstream.Result{HasEntitlements: true, Payload: "p"}}
	fx := newFetchFixture(t, fetcher, newFakeUsersRepo(federatedUser()), testRelyingParty(), rp2)

	err := fx.svc.AttachOnLogin(context.Background(), "alice", "school-portal")
	require.ErrorIs(t, err, common.ErrConfiguration)
	require.Empty(t, fx.rm.rec.store, "no cache record without a resolvable config")
}

func TestAttachOnLogin_NoRelyingParty(t *testing.T) {
	fetcher := &fakeFetcher{result: &upstream.Result{HasEntitlements: true, Payload: "p"}}
	fx := newFetchFixture(t, fetcher, newFakeUsersRepo(federatedUser()))

	err := fx.svc.AttachOnLogin(context.Background(), "alice", "school-portal")
	require.ErrorIs(t, err, common.ErrConfiguration)
}

package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaygate/authbridge/internal/bridge/domain"
	"github.com/relaygate/authbridge/internal/bridge/store"
	"github.com/relaygate/authbridge/pkg/cryptox"
	"github.com/relaygate/authbridge/pkg/idx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	box, err := cryptox.NewSealbox([]byte("test-master-key"))
	require.NoError(t, err)

	s, err := Open(":memory:", box)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestClientRepo(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	client := &domain.Client{
		ID:           idx.New(),
		Name:         "Test MCP Client",
		SecretHash:   "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		RedirectURIs: []string{"http://localhost:8765/callback"},
		Scope:        "openid profile",
		AuthMethod:   domain.AuthMethodClientSecretPost,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, s.Clients().Create(ctx, client))

	t.Run("duplicate id rejected", func(t *testing.T) {
		err := s.Clients().Create(ctx, client)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("round trip", func(t *testing.T) {
		got, err := s.Clients().Get(ctx, client.ID)
		require.NoError(t, err)
		require.Equal(t, client, got)
	})

	t.Run("list", func(t *testing.T) {
		clients, err := s.Clients().List(ctx)
		require.NoError(t, err)
		require.Len(t, clients, 1)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Clients().Delete(ctx, client.ID))

		_, err := s.Clients().Get(ctx, client.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
		require.ErrorIs(t, s.Clients().Delete(ctx, client.ID), store.ErrNotFound)
	})
}

func TestTransactionConsumeIsSingleUse(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	txn := &domain.Transaction{
		ID:       cryptox.MustGenerateToken(cryptox.TokenSize256),
		ClientID: idx.New(),
		Payload: domain.TransactionPayload{
			ClientState:           "client-state-xyz",
			ClientRedirectURI:     "http://localhost:9999/cb",
			ClientChallenge:       "challenge",
			ClientChallengeMethod: "S256",
			UpstreamVerifier:      "upstream-verifier",
			Scope:                 "openid",
		},
		CreatedAt: now,
		ExpiresAt: now.Add(domain.TransactionTTL),
	}
	require.NoError(t, s.Transactions().Create(ctx, txn))

	got, err := s.Transactions().Consume(ctx, txn.ID, now)
	require.NoError(t, err)
	require.Equal(t, txn.Payload, got.Payload)
	require.Equal(t, txn.ClientID, got.ClientID)

	_, err = s.Transactions().Consume(ctx, txn.ID, now)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransactionConsumeExpired(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	txn := &domain.Transaction{
		ID:        cryptox.MustGenerateToken(cryptox.TokenSize256),
		ClientID:  idx.New(),
		Payload:   domain.TransactionPayload{ClientState: "s"},
		CreatedAt: now.Add(-11 * time.Minute),
		ExpiresAt: now.Add(-time.Minute),
	}
	require.NoError(t, s.Transactions().Create(ctx, txn))

	_, err := s.Transactions().Consume(ctx, txn.ID, now)
	require.ErrorIs(t, err, store.ErrNotFound)

	// The expired row was removed, not left behind.
	_, err = s.Transactions().Consume(ctx, txn.ID, now.Add(-2*time.Minute))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransactionPayloadSealedAtRest(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	txn := &domain.Transaction{
		ID:        cryptox.MustGenerateToken(cryptox.TokenSize256),
		ClientID:  idx.New(),
		Payload:   domain.TransactionPayload{UpstreamVerifier: "super-secret-verifier"},
		CreatedAt: now,
		ExpiresAt: now.Add(domain.TransactionTTL),
	}
	require.NoError(t, s.Transactions().Create(ctx, txn))

	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM transactions WHERE id = ?`, txn.ID).Scan(&raw)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "super-secret-verifier")
}

func TestClientCodeConsume(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	code := &domain.ClientCode{
		Code:     cryptox.MustGenerateToken(cryptox.TokenSize256),
		ClientID: idx.New(),
		Payload: domain.ClientCodePayload{
			ClientChallenge:       "chal",
			ClientChallengeMethod: "S256",
			ClientRedirectURI:     "http://localhost:9999/cb",
			Subject:               "user-1",
			UpstreamAccessToken:   "upstream-at",
			UpstreamRefreshToken:  "upstream-rt",
			UpstreamExpiresAt:     now.Add(time.Hour).Truncate(time.Second),
		},
		CreatedAt: now,
		ExpiresAt: now.Add(domain.ClientCodeTTL),
	}
	require.NoError(t, s.ClientCodes().Create(ctx, code))

	got, err := s.ClientCodes().Consume(ctx, code.Code, now)
	require.NoError(t, err)
	require.Equal(t, code.Payload.UpstreamAccessToken, got.Payload.UpstreamAccessToken)
	require.Equal(t, code.Payload.Subject, got.Payload.Subject)

	_, err = s.ClientCodes().Consume(ctx, code.Code, now)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTokenRepo(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	clientID := idx.New()

	issued := &domain.IssuedToken{
		Fingerprint: cryptox.FingerprintToken("access-token"),
		ClientID:    clientID,
		Subject:     "user-1",
		Scope:       "openid",
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
	require.NoError(t, s.Tokens().CreateIssued(ctx, issued))

	refresh := &domain.RefreshToken{
		Fingerprint:   cryptox.FingerprintToken("refresh-token"),
		ClientID:      clientID,
		Subject:       "user-1",
		Scope:         "openid",
		UpstreamToken: "upstream-refresh-token",
		CreatedAt:     now,
		ExpiresAt:     now.Add(domain.RefreshTokenTTL),
	}
	require.NoError(t, s.Tokens().CreateRefresh(ctx, refresh))

	t.Run("issued round trip", func(t *testing.T) {
		got, err := s.Tokens().GetIssued(ctx, issued.Fingerprint)
		require.NoError(t, err)
		require.Equal(t, issued, got)
	})

	t.Run("issued without client binding round trips", func(t *testing.T) {
		unbound := &domain.IssuedToken{
			Fingerprint: cryptox.FingerprintToken("verified-token"),
			Subject:     "user-2",
			Scope:       "openid",
			CreatedAt:   now,
			ExpiresAt:   now.Add(time.Hour),
		}
		require.NoError(t, s.Tokens().CreateIssued(ctx, unbound))

		got, err := s.Tokens().GetIssued(ctx, unbound.Fingerprint)
		require.NoError(t, err)
		require.Equal(t, unbound, got)
		require.True(t, got.ClientID.IsZero())
	})

	t.Run("refresh round trip unseals upstream token", func(t *testing.T) {
		got, err := s.Tokens().GetRefresh(ctx, refresh.Fingerprint)
		require.NoError(t, err)
		require.Equal(t, "upstream-refresh-token", got.UpstreamToken)
	})

	t.Run("upstream refresh token sealed at rest", func(t *testing.T) {
		var raw []byte
		err := s.db.QueryRowContext(ctx,
			`SELECT upstream_sealed FROM refresh_tokens WHERE fingerprint = ?`,
			refresh.Fingerprint).Scan(&raw)
		require.NoError(t, err)
		require.NotContains(t, string(raw), "upstream-refresh-token")
	})

	t.Run("delete by client drops everything", func(t *testing.T) {
		require.NoError(t, s.Tokens().DeleteByClient(ctx, clientID))

		_, err := s.Tokens().GetIssued(ctx, issued.Fingerprint)
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.Tokens().GetRefresh(ctx, refresh.Fingerprint)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestDeleteExpired(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := now.Add(-time.Minute)
	fresh := now.Add(time.Hour)

	require.NoError(t, s.Transactions().Create(ctx, &domain.Transaction{
		ID: "stale-txn", ClientID: idx.New(),
		Payload:   domain.TransactionPayload{},
		CreatedAt: now.Add(-time.Hour), ExpiresAt: stale,
	}))
	require.NoError(t, s.ClientCodes().Create(ctx, &domain.ClientCode{
		Code: "stale-code", ClientID: idx.New(),
		Payload:   domain.ClientCodePayload{},
		CreatedAt: now.Add(-time.Hour), ExpiresAt: stale,
	}))
	require.NoError(t, s.Tokens().CreateIssued(ctx, &domain.IssuedToken{
		Fingerprint: "stale-at", ClientID: idx.New(),
		CreatedAt: now.Add(-time.Hour), ExpiresAt: stale,
	}))
	require.NoError(t, s.Tokens().CreateIssued(ctx, &domain.IssuedToken{
		Fingerprint: "fresh-at", ClientID: idx.New(),
		CreatedAt: now, ExpiresAt: fresh,
	}))

	n, err := s.Transactions().DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = s.ClientCodes().DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = s.Tokens().DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = s.Tokens().GetIssued(ctx, "fresh-at")
	require.NoError(t, err)
}

func TestWithTxRollsBack(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	client := &domain.Client{
		ID:           idx.New(),
		Name:         "rollback",
		SecretHash:   "h",
		RedirectURIs: []string{"http://localhost:9999/cb"},
		AuthMethod:   domain.AuthMethodNone,
		CreatedAt:    time.Now().UTC(),
	}

	wantErr := context.Canceled
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Clients().Create(ctx, client); err != nil {
			return err
		}
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	_, err = s.Clients().Get(ctx, client.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

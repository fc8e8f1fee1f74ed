package credential

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCredentialRepo captures the last upserted credential.
type fakeCredentialRepo struct {
	saved *Credential
}

func (f *fakeCredentialRepo) Upsert(_ context.Context, cred *Credential) error {
	f.saved = cred
	return nil
}

func (f *fakeCredentialRepo) GetByRestaurant(_ context.Context, restaurantID string) (*Credential, error) {
	if f.saved != nil && f.saved.RestaurantID == restaurantID {
		return f.saved, nil
	}
	return nil, nil
}

func (f *fakeCredentialRepo) ListActive(_ context.Context) ([]Credential, error) {
	if f.saved == nil || !f.saved.IsActive {
		return nil, nil
	}
	return []Credential{*f.saved}, nil
}

func (f *fakeCredentialRepo) SetLastSyncAt(_ context.Context, _ string, t time.Time) error {
	if f.saved != nil {
		f.saved.LastSyncAt = &t
	}
	return nil
}

func (f *fakeCredentialRepo) Deactivate(_ context.Context, _ string) error {
	if f.saved != nil {
		f.saved.IsActive = false
	}
	return nil
}

func (f *fakeCredentialRepo) EnsureIndexes(_ context.Context) error { return nil }

func newTestService(t *testing.T) (*CredentialServiceImpl, *fakeCredentialRepo) {
	t.Helper()
	vault, err := NewVault(testSecret)
	require.NoError(t, err)
	repo := &fakeCredentialRepo{}
	return &CredentialServiceImpl{Repo: repo, Vault: vault}, repo
}

func TestSaveCredentialsEncryptsAtRest(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	err := svc.SaveCredentials(ctx, "rest-1", "my-client-id", "my-client-secret", "loc-guid-1")
	require.NoError(t, err)
	require.NotNil(t, repo.saved)

	assert.NotEqual(t, "my-client-id", repo.saved.EncryptedClientID)
	assert.NotEqual(t, "my-client-secret", repo.saved.EncryptedClientSecret)
	assert.Equal(t, "loc-guid-1", repo.saved.LocationID, "location id stays plaintext")
	assert.True(t, repo.saved.IsActive)

	decrypted, err := svc.DecryptCredentialSet(repo.saved)
	require.NoError(t, err)
	assert.Equal(t, "my-client-id", decrypted.ClientID)
	assert.Equal(t, "my-client-secret", decrypted.ClientSecret)
	assert.Equal(t, "loc-guid-1", decrypted.LocationGUID)
}

func TestSaveCredentialsRejectsMissingFields(t *testing.T) {
	svc, repo := newTestService(t)

	err := svc.SaveCredentials(context.Background(), "rest-1", "id", "", "loc")
	var missingErr *MissingCredentialFieldsError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []string{"encryptedClientSecret"}, missingErr.Missing)
	assert.Nil(t, repo.saved, "nothing persisted on validation failure")
}

func TestDecryptCredentialSetNamesMissingFields(t *testing.T) {
	svc, _ := newTestService(t)

	encID, err := svc.Vault.Encrypt("id")
	require.NoError(t, err)
	encSecret, err := svc.Vault.Encrypt("secret")
	require.NoError(t, err)

	tests := []struct {
		name        string
		cred        Credential
		wantMissing []string
		wantPresent []string
	}{
		{
			name:        "missing client id",
			cred:        Credential{EncryptedClientSecret: encSecret, LocationID: "loc"},
			wantMissing: []string{"clientId"},
			wantPresent: []string{"encryptedClientSecret", "locationId"},
		},
		{
			name:        "missing client secret",
			cred:        Credential{EncryptedClientID: encID, LocationID: "loc"},
			wantMissing: []string{"encryptedClientSecret"},
			wantPresent: []string{"clientId", "locationId"},
		},
		{
			name:        "missing location id",
			cred:        Credential{EncryptedClientID: encID, EncryptedClientSecret: encSecret},
			wantMissing: []string{"locationId"},
			wantPresent: []string{"clientId", "encryptedClientSecret"},
		},
		{
			name:        "all missing",
			cred:        Credential{},
			wantMissing: []string{"clientId", "encryptedClientSecret", "locationId"},
			wantPresent: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.DecryptCredentialSet(&tt.cred)
			var missingErr *MissingCredentialFieldsError
			require.ErrorAs(t, err, &missingErr)
			assert.Equal(t, tt.wantMissing, missingErr.Missing)
			assert.Equal(t, tt.wantPresent, missingErr.Present)

			for _, field := range tt.wantMissing {
				assert.Contains(t, err.Error(), field, "error message must name the missing field")
			}
		})
	}
}

func TestDecryptCredentialSetCorruptCiphertext(t *testing.T) {
	svc, _ := newTestService(t)

	encSecret, err := svc.Vault.Encrypt("secret")
	require.NoError(t, err)

	_, err = svc.DecryptCredentialSet(&Credential{
		EncryptedClientID:     "not:a:validcipher",
		EncryptedClientSecret: encSecret,
		LocationID:            "loc",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedCiphertext)
}

func TestMarkSyncedAdvancesLastSyncAt(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveCredentials(ctx, "rest-1", "id", "secret", "loc"))

	syncedThrough := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, svc.MarkSynced(ctx, "rest-1", syncedThrough))

	require.NotNil(t, repo.saved.LastSyncAt)
	assert.True(t, repo.saved.LastSyncAt.Equal(syncedThrough))
}

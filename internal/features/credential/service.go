package credential

import (
	"context"
	"fmt"
	"time"
)

type CredentialService interface {
	SaveCredentials(ctx context.Context, restaurantID, clientID, clientSecret, locationID string) error
	GetCredential(ctx context.Context, restaurantID string) (*Credential, error)
	DecryptCredentialSet(cred *Credential) (*DecryptedCredentials, error)
	MarkSynced(ctx context.Context, restaurantID string, syncedThrough time.Time) error
	ListActive(ctx context.Context) ([]Credential, error)
	Deactivate(ctx context.Context, restaurantID string) error
}

type CredentialServiceImpl struct {
	Repo  CredentialRepository
	Vault *Vault
}

func NewCredentialService(repo CredentialRepository, vault *Vault) CredentialService {
	return &CredentialServiceImpl{
		Repo:  repo,
		Vault: vault,
	}
}

func (s *CredentialServiceImpl) SaveCredentials(ctx context.Context, restaurantID, clientID, clientSecret, locationID string) error {
	if clientID == "" || clientSecret == "" || locationID == "" {
		missing, present := partitionFields(clientID, clientSecret, locationID)
		return &MissingCredentialFieldsError{Missing: missing, Present: present}
	}

	encID, err := s.Vault.Encrypt(clientID)
	if err != nil {
		return fmt.Errorf("encrypt client id: %w", err)
	}
	encSecret, err := s.Vault.Encrypt(clientSecret)
	if err != nil {
		return fmt.Errorf("encrypt client secret: %w", err)
	}

	return s.Repo.Upsert(ctx, &Credential{
		RestaurantID:          restaurantID,
		EncryptedClientID:     encID,
		EncryptedClientSecret: encSecret,
		LocationID:            locationID,
		IsActive:              true,
	})
}

func (s *CredentialServiceImpl) GetCredential(ctx context.Context, restaurantID string) (*Credential, error) {
	return s.Repo.GetByRestaurant(ctx, restaurantID)
}

// DecryptCredentialSet returns the plaintext credential set. It refuses to
// attempt decryption unless all three fields are present; partial credentials
// are a configuration error, not a decryption failure.
func (s *CredentialServiceImpl) DecryptCredentialSet(cred *Credential) (*DecryptedCredentials, error) {
	missing, present := partitionFields(cred.EncryptedClientID, cred.EncryptedClientSecret, cred.LocationID)
	if len(missing) > 0 {
		return nil, &MissingCredentialFieldsError{Missing: missing, Present: present}
	}

	clientID, err := s.Vault.Decrypt(cred.EncryptedClientID)
	if err != nil {
		return nil, fmt.Errorf("decrypt client id: %w", err)
	}
	clientSecret, err := s.Vault.Decrypt(cred.EncryptedClientSecret)
	if err != nil {
		return nil, fmt.Errorf("decrypt client secret: %w", err)
	}

	return &DecryptedCredentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		LocationGUID: cred.LocationID,
	}, nil
}

func (s *CredentialServiceImpl) MarkSynced(ctx context.Context, restaurantID string, syncedThrough time.Time) error {
	return s.Repo.SetLastSyncAt(ctx, restaurantID, syncedThrough)
}

func (s *CredentialServiceImpl) ListActive(ctx context.Context) ([]Credential, error) {
	return s.Repo.ListActive(ctx)
}

func (s *CredentialServiceImpl) Deactivate(ctx context.Context, restaurantID string) error {
	return s.Repo.Deactivate(ctx, restaurantID)
}

func partitionFields(clientID, clientSecret, locationID string) (missing, present []string) {
	fields := []struct {
		name  string
		value string
	}{
		{"clientId", clientID},
		{"encryptedClientSecret", clientSecret},
		{"locationId", locationID},
	}
	for _, f := range fields {
		if f.value == "" {
			missing = append(missing, f.name)
		} else {
			present = append(present, f.name)
		}
	}
	return missing, present
}

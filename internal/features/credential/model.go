package credential

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Credential holds a tenant's POS connection, client id and secret encrypted
// at rest in the <iv>:<tag>:<cipher> hex format produced by the Vault.
type Credential struct {
	ID                    primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RestaurantID          string             `json:"restaurant_id" bson:"restaurant_id"`
	EncryptedClientID     string             `json:"-" bson:"encrypted_client_id"`
	EncryptedClientSecret string             `json:"-" bson:"encrypted_client_secret"`
	LocationID            string             `json:"location_id" bson:"location_id"` // plaintext external GUID
	IsActive              bool               `json:"is_active" bson:"is_active"`
	LastSyncAt            *time.Time         `json:"last_sync_at,omitempty" bson:"last_sync_at,omitempty"`
	CreatedAt             time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at" bson:"updated_at"`
}

// DecryptedCredentials is the plaintext credential set handed to the fetcher.
// Never persisted.
type DecryptedCredentials struct {
	ClientID     string
	ClientSecret string
	LocationGUID string
}

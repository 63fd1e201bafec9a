package domain

import (
	"encoding/json"
	"time"
)

// CredentialBlob is the tagged union of fields the credentials port may
// persist per broker (spec §6). Only fields actually populated are
// meaningful; adapters decode only what they need.
type CredentialBlob struct {
	APIKey       string    `json:"api_key,omitempty"`
	APISecret    string    `json:"api_secret,omitempty"`
	ClientID     string    `json:"client_id,omitempty"`
	ClientSecret string    `json:"client_secret,omitempty"`
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// MarshalBlob serializes a CredentialBlob for the credentials port.
func MarshalBlob(b CredentialBlob) ([]byte, error) {
	return json.Marshal(b)
}

// UnmarshalBlob deserializes a CredentialBlob from the credentials port. A
// nil/empty input yields a zero-value blob with no error, matching "no
// stored credentials yet".
func UnmarshalBlob(data []byte) (CredentialBlob, error) {
	var b CredentialBlob
	if len(data) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return CredentialBlob{}, err
	}
	return b, nil
}

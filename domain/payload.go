package domain

// PayloadRecord is one entry of the externally stored keyed-record collection.
// The Base64 value is opaque payload data, read-only from this system's side.
type PayloadRecord struct {
	Token  string `json:"token"`
	Base64 string `json:"base64"`
}

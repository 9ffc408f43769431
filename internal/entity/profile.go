package entity

// UserProfile is the subset of an AT Protocol actor profile the app cares
// about, forwarded to the client after login.
type UserProfile struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Description string `json:"description,omitempty"`
	Banner      string `json:"banner,omitempty"`
}

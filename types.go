package surrealdb

// Auth holds the credentials for SignIn and SignUp. Leave Namespace and
// Database empty for root users; set them for namespace or database users.
type Auth struct {
	Namespace string `json:"NS,omitempty"`
	Database  string `json:"DB,omitempty"`
	Access    string `json:"AC,omitempty"`
	Username  string `json:"user,omitempty"`
	Password  string `json:"pass,omitempty"`
}

// PatchData is one JSON Patch (RFC 6902) operation, as sent by Modify.
type PatchData struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	From  string `json:"from,omitempty"`
	Value any    `json:"value"`
}

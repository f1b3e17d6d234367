package credentials

// User is a registered account as stored in the users file.
type User struct {
	PasswordHash        string `json:"password_hash"`
	ForcePasswordChange bool   `json:"force_password_change"`
	Department          string `json:"department,omitempty"`
	Email               string `json:"email,omitempty"`
	CreatedAt           string `json:"created_at,omitempty"`
}

// TempPassword is an outstanding one-time password issued by an administrator.
type TempPassword struct {
	TempPasswordHash string `json:"temp_password_hash"`
	MustChange       bool   `json:"must_change"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// NewUser describes an account to be created by the admin tool.
type NewUser struct {
	Username   string
	Email      string
	Department string
}

// LoginOutcome says what a successful authentication unlocks.
type LoginOutcome int

const (
	// LoginActive grants a full chat session.
	LoginActive LoginOutcome = iota
	// LoginMustChange requires CHANGE_PASS before anything else.
	LoginMustChange
)

package credentials

import "context"

// Repository persists the user table and the temporary password table.
// Load methods return empty maps when nothing has been stored yet.
type Repository interface {
	LoadUsers(ctx context.Context) (map[string]*User, error)
	SaveUsers(ctx context.Context, users map[string]*User) error
	LoadTempPasswords(ctx context.Context) (map[string]*TempPassword, error)
	SaveTempPasswords(ctx context.Context, temp map[string]*TempPassword) error
}

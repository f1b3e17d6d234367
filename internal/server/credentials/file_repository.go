package credentials

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophtalk/internal/filex"
)

// FileRepository keeps both tables as JSON documents on disk.
type FileRepository struct {
	usersPath string
	tempPath  string
}

func NewFileRepository(usersPath, tempPath string) *FileRepository {
	return &FileRepository{usersPath: usersPath, tempPath: tempPath}
}

func (r *FileRepository) LoadUsers(ctx context.Context) (map[string]*User, error) {
	users := map[string]*User{}
	if _, err := filex.ReadJSON(r.usersPath, &users); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	if users == nil {
		users = map[string]*User{}
	}
	return users, nil
}

func (r *FileRepository) SaveUsers(ctx context.Context, users map[string]*User) error {
	if err := filex.WriteJSONAtomic(r.usersPath, users); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}

func (r *FileRepository) LoadTempPasswords(ctx context.Context) (map[string]*TempPassword, error) {
	temp := map[string]*TempPassword{}
	if _, err := filex.ReadJSON(r.tempPath, &temp); err != nil {
		return nil, fmt.Errorf("load temporary passwords: %w", err)
	}
	if temp == nil {
		temp = map[string]*TempPassword{}
	}
	return temp, nil
}

func (r *FileRepository) SaveTempPasswords(ctx context.Context, temp map[string]*TempPassword) error {
	if err := filex.WriteJSONAtomic(r.tempPath, temp); err != nil {
		return fmt.Errorf("save temporary passwords: %w", err)
	}
	return nil
}

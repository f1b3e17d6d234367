// Package admin implements the onboarding tool used to create chat
// accounts and issue temporary passwords.
package admin

import (
	"io"
	"strings"

	"github.com/dmitrijs2005/gophtalk/internal/server/config"
	"github.com/dmitrijs2005/gophtalk/internal/server/credentials"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. GOPHTALK_ADMIN_DATA_DIR.
const EnvPrefix = "GOPHTALK_ADMIN"

type app struct {
	v   *viper.Viper
	out io.Writer
	in  io.Reader
}

// NewRootCmd builds the command tree. in feeds --prompt when stdin is not
// a terminal; out receives all command output.
func NewRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), in: in, out: out}
	a.v.SetEnvPrefix(EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "gophtalk-admin",
		Short:         "Manage gophtalk accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().String("data-dir", ".", "directory holding users_db.json and temporary_passwords.json")
	_ = a.v.BindPFlag("data-dir", root.PersistentFlags().Lookup("data-dir"))

	root.AddCommand(a.createUserCmd(), a.resetCmd(), a.listCmd())
	return root
}

func (a *app) service() *credentials.Service {
	cfg := &config.Config{DataDir: a.v.GetString("data-dir")}
	return credentials.NewService(credentials.NewFileRepository(cfg.UsersFile(), cfg.TempPasswordsFile()))
}

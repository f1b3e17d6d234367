package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophtalk/internal/admin"
)

func main() {
	root := admin.NewRootCmd(os.Stdin, os.Stdout)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

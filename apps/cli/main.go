package main

import (
	"fmt"
	"os"

	"github.com/wilsonllucena/igreja-conciliada/apps/cli/app"
	"github.com/wilsonllucena/igreja-conciliada/apps/cli/root"
)

func main() {
	if err := root.Execute(); err != nil {
		if !app.IsReported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

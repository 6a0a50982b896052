package main

import (
	"os"

	"github.com/autopeer-io/vensim/cmd/venctl/app"
)

func main() {
	if err := app.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

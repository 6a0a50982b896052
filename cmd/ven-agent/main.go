package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/vensim/cmd/ven-agent/app"
)

func main() {
	app.NewApp().Run()
}

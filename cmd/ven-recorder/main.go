package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/vensim/cmd/ven-recorder/app"
)

func main() {
	app.NewApp().Run()
}

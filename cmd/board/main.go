package main

import (
	"os"

	"github.com/idilsaglam/kanban/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:], cli.Options{}))
}

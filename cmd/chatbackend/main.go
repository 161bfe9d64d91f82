package main

import (
	"os"

	"github.com/seproj/chatbackend/internal/app/cli"
)

func main() {
	os.Exit(cli.Run(os.Args))
}

package main

import (
	"os"

	"github.com/dmitrijs2005/travellife/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

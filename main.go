package main

import (
	"github.com/luma/parley/cmd"
)

func main() {
	cmd.Execute()
}

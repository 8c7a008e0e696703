package main

import (
	"github.com/formgate/formgate/internal/cmd"
)

func main() {
	cmd.Execute()
}

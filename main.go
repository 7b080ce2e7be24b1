package main

import (
	"github.com/notargets/gopnp/cmd"
)

func main() {
	cmd.Execute()
}

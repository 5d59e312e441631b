package main

import (
	"github.com/uasnet/uanode.go/pkg/cli/sh"
)

func main() {
	sh.Main()
}

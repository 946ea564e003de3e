package main

import (
	"github.com/krelborne/wowloot/cmd"
)

func main() {
	cmd.Execute()
}

package main

import (
	"github.com/fermata-audio/scorefollow/cmd"
)

func main() {
	cmd.Execute()
}

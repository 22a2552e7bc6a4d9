package main

import (
	"fmt"
	"os"

	"github.com/snatchdl/snatch/cmd"
)

func main() {
	if err := cmd.Execute(os.Args); err != nil {
		fmt.Printf("snatch: %s\n", err.Error())
		os.Exit(1)
	}
}

package main

import (
	"os"
)

const version = "1.0.0"

//	@title			categorybot API
//	@version		1.0
//	@description	Administrative HTTP surface of the category tree bot.
//	@BasePath		/
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

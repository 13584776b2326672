package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/ncobase/genqueue/cmd/commands"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	rootCmd := commands.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

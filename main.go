package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/hitoshi/leadbook/internal/app"
)

func main() {
	// .envがあれば読み込む（無くてもエラーにしない）
	_ = godotenv.Load()

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "leadbook: %v\n", err)
		os.Exit(1)
	}
}

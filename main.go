package main

import (
	"embed"
	"fmt"
	"os"

	"github.com/JonMunkholm/ddlgen/internal/cli"
)

//go:embed web/*
var webFS embed.FS

func main() {
	if err := cli.NewRootCmd(webFS).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

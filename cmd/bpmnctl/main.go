// Command bpmnctl is an operator tool for the BPMN mapper: it translates files
// offline, checks rule sets and looks up registered uploads.
package main

import (
	"fmt"
	"os"

	"github.com/kirillkom/bpmn-lod-mapper/internal/config"
)

func main() {
	if err := config.LoadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		fmt.Fprintf(os.Stderr, "Error: load env file: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

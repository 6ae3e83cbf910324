// Copyright 2025 ZKIPS Chain Contributors
//
// zkips-setup runs the one-time Groth16 trusted setup for the identity and
// stake circuits and writes the resulting constraint system, proving key,
// and verifying key to disk.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/zkipschain/zkips/pkg/zkidentity"
)

func main() {
	var (
		circuit = flag.String("circuit", "identity", "circuit to set up: identity or stake")
		outDir  = flag.String("out", "./keys", "directory to write the constraint system, proving key, and verifying key to")
	)
	flag.Parse()

	log.Printf("running trusted setup for %s circuit", *circuit)

	var keys *zkidentity.Keys
	var err error
	switch *circuit {
	case "identity":
		keys, err = zkidentity.SetupIdentity()
	case "stake":
		keys, err = zkidentity.SetupStake()
	default:
		fmt.Fprintf(os.Stderr, "unknown circuit %q, expected identity or stake\n", *circuit)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("trusted setup failed: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create output directory: %v", err)
	}

	csPath := filepath.Join(*outDir, *circuit+".cs")
	pkPath := filepath.Join(*outDir, *circuit+".pk")
	vkPath := filepath.Join(*outDir, *circuit+".vk")

	if err := keys.SaveKeys(csPath, pkPath, vkPath); err != nil {
		log.Fatalf("save keys: %v", err)
	}

	log.Printf("wrote %s, %s, %s", csPath, pkPath, vkPath)
}

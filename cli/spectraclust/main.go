package main

import (
	"os"

	spectraclustcmder "github.com/wizenheimer/spectra/cmd/spectraclust"
)

func main() {
	cmd := spectraclustcmder.NewSpectraclustCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

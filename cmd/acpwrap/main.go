package main

import (
	"os"

	"github.com/Paintersrp/acpwrap/internal/cli"
	"github.com/Paintersrp/acpwrap/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	os.Exit(cli.Execute())
}

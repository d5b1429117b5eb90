package main

import (
	"github.com/Paintersrp/devdock/internal/cli"
	"github.com/Paintersrp/devdock/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}

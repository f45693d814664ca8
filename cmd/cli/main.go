package main

import "github.com/mchmarny/benchbase/pkg/cli"

func main() {
	cli.Execute()
}

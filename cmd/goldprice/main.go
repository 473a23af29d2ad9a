package main

import "github.com/Sandy01030103/gold-price-etl/internal/cli"

func main() {
	cli.Execute()
}

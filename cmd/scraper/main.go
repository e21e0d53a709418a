package main

import "table-scraper/internal/cli"

func main() {
	cli.Execute()
}

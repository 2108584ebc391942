package main

import "github.com/JakeFAU/news-ingest-crawler/cmd"

func main() {
	cmd.Execute()
}

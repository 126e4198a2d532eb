package main

import "github.com/CosmoTheDev/reconctl/cmd"

func main() {
	cmd.Execute()
}

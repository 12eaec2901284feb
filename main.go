package main

import "github.com/nextlevelbuilder/phishclaw/cmd"

func main() {
	cmd.Execute()
}

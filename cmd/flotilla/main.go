package main

import (
	"github.com/CPU-JIA/Flotilla-sub008/cmd/flotilla/cmd"
)

func main() {
	cmd.Execute()
}

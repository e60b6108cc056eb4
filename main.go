// main is the entry point of the recap CLI.
package main

import (
	"github.com/huangsam/recap/cmd"
	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/internal/iocache"
)

func main() {
	err := cmd.Execute()
	iocache.CloseStores()
	if perr := cmd.StopProfiling(); perr != nil {
		contract.LogWarn("Profiling", perr)
	}
	if err != nil {
		contract.LogFatal("recap", err)
	}
}

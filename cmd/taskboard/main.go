package main

import (
	"flag"
	"log"

	"github.com/michae-lzhou/Task-Board/internal/mboard"
)

func main() {
	confPath := flag.String("config", "configs/taskboard.env", "path to the env config file")
	flag.Parse()

	if err := mboard.InitAndServe(*confPath); err != nil {
		log.Fatalf("taskboard: %v", err)
	}
}

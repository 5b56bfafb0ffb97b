// Command irrigate trains a Double DQN irrigation policy on a weather
// forecast and prints the day-by-day irrigation schedule of the learned
// policy as JSON.
package main

import (
	"log"
	"os"

	"github.com/alecthomas/kong"
)

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("irrigate"),
		kong.Description("Train and run a DQN watering policy."),
		kong.UsageOnError(),
	)

	if err := cli.Run(os.Stdout, os.Stderr); err != nil {
		log.Printf("irrigate: %v", err)
		ctx.Exit(1)
	}
}

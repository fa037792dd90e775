package main

import (
	"math/rand"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/vkngwrapper/kma/trace"
)

var generateCommand = &cli.Command{
	Name:  "generate",
	Usage: "write a random well-formed trace",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "requests",
			Value: trace.DefaultRequests,
			Usage: "number of REQUEST commands",
		},
		&cli.IntFlag{
			Name:  "max-size",
			Value: trace.DefaultMaxSize,
			Usage: "largest request size in bytes",
		},
		&cli.IntFlag{
			Name:  "live",
			Value: trace.DefaultLiveLimit,
			Usage: "most requests live at once",
		},
		&cli.Int64Flag{
			Name:  "seed",
			Usage: "random seed (0 picks one from the clock)",
		},
		&cli.StringFlag{
			Name:  "out",
			Usage: "file to write the trace to (default stdout)",
		},
	},
	Action: func(c *cli.Context) error {
		seed := c.Int64("seed")
		if seed == 0 {
			seed = time.Now().UnixNano()
		}

		generated := trace.Generate(rand.New(rand.NewSource(seed)), trace.GenerateOptions{
			Requests:  c.Int("requests"),
			MaxSize:   c.Int("max-size"),
			LiveLimit: c.Int("live"),
		})

		outFile := c.String("out")
		if outFile == "" {
			_, err := generated.WriteTo(c.App.Writer)
			return err
		}

		return writeTrace(outFile, generated)
	},
}

func writeTrace(path string, generated *trace.Trace) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	_, err = generated.WriteTo(file)
	closeErr := file.Close()
	if err != nil {
		return err
	}
	return closeErr
}

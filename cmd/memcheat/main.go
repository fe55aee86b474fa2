package main

import (
	"log"
	"os"

	"memcheat/config"

	"github.com/urfave/cli"
)

const (
	usage = `memcheat searches a running process's memory for values, narrows the
             candidates over repeated passes and keeps chosen addresses frozen`
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "memcheat"
	app.Usage = usage
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "configuration file",
			Value: config.DefaultConfigFile,
		},
	}
	app.Commands = []cli.Command{
		ps,
		regions,
		scanCmd,
		peek,
		attach,
		open,
		dump,
		apply,
	}

	return app
}

func main() {
	app := newApp()

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

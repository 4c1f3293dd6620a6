// command line client: submit a scribble and watch it turn into an image
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ds124wfegd/scribble-diffusion/config"
	"github.com/ds124wfegd/scribble-diffusion/internal/apiclient"
	"github.com/ds124wfegd/scribble-diffusion/internal/controller"
	"github.com/ds124wfegd/scribble-diffusion/internal/display"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))
	logrus.SetOutput(os.Stderr)

	viperInstance, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Cannot load config. Error: {%s}", err.Error())
	}

	cfg, err := config.ParseConfig(viperInstance)
	if err != nil {
		logrus.Fatalf("Cannot parse config. Error: {%s}", err.Error())
	}

	server := flag.String("server", config.GetEnv("SCRIBBLE_SERVER_URL", cfg.App.BaseURL), "scribble diffusion server URL")
	prompt := flag.String("prompt", "", "what the scribble should become; a seed prompt is used when empty")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-server URL] [-prompt TEXT] <scribble.png | scribble.datauri>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	scribble, err := readScribble(flag.Arg(0))
	if err != nil {
		logrus.Fatalf("Cannot read scribble: %s", err.Error())
	}

	text := strings.TrimSpace(*prompt)
	if text == "" {
		text = controller.RandomSeed(nil)
		logrus.WithField("prompt", text).Info("Using seed prompt")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := apiclient.New(*server, apiclient.WithUserAgent(cfg.UserAgent()+" cli"))
	board := display.NewBoard(*server)
	ctrl := controller.New(client, board, controller.Config{
		PollInterval: cfg.Poll.Interval,
		Out:          os.Stdout,
	})

	prediction, err := ctrl.Submit(ctx, scribble, text)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", ctrl.Error())
		os.Exit(1)
	}

	fmt.Println(board.ShareURL(prediction))
}

// readScribble accepts a PNG file or a file holding a canvas data URI.
func readScribble(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("data:")) {
		return string(trimmed), nil
	}
	return apiclient.EncodeDataURI(data), nil
}

// entry point to app :)
package main

import (
	"github.com/ds124wfegd/scribble-diffusion/config"
	"github.com/ds124wfegd/scribble-diffusion/internal/appServer"
	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))

	viperInstance, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Cannot load config. Error: {%s}", err.Error())
	}

	cfg, err := config.ParseConfig(viperInstance)
	if err != nil {
		logrus.Fatalf("Cannot parse config. Error: {%s}", err.Error())
	}

	if cfg.Replicate.APIToken == "" {
		logrus.Warn(entity.ErrMissingAPIToken.Error())
	}

	appServer.NewServer(cfg)
}

package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/camuploader/internal/uploader"
	"github.com/dmitrijs2005/camuploader/internal/uploader/config"
)

func main() {

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := uploader.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}

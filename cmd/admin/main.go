package main

import (
	"log"
	"os"

	"chez-meme/config"
	"chez-meme/services"
	"chez-meme/utils"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	errAndDie(err)
	utils.Log.EnableRollbar(cfg.RollbarToken, cfg.Env, "cli")
	defer utils.Log.Close()

	db, err := config.OpenDatabase(cfg.DatabaseURL, cfg.DBLogLevel)
	errAndDie(err)
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	cli := commandLine{
		db:        db,
		auth:      services.NewAuthService(db),
		distances: services.NewDistanceService(db, cfg.Routing.BaseURL, cfg.Routing.Delay),
		seed: services.SeedOptions{
			AdminUsername: cfg.Admin.Username,
			AdminEmail:    cfg.Admin.Email,
			AdminPassword: cfg.Admin.Password,
		},
		uploadDir: cfg.Images.UploadDir,
		out:       os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("error: %s", err)
		}
		utils.Log.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}

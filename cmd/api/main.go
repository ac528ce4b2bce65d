package main

import (
	"log"
	"net/http"

	"diagbench/internal/api"
	"diagbench/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	h := api.NewServer(cfg)
	log.Printf("diagbench api listening on %s vision_providers=%q imagegen_providers=%q", cfg.APIAddr, cfg.VisionProviders, cfg.ImageGenProviders)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}

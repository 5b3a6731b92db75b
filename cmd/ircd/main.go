package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/presbrey/ircd/irc"
	_ "github.com/presbrey/ircd/modules/usermod"
)

func main() {
	// Define command-line flags
	ircAddr := flag.String("irc", ":6667", "IRC server bind address")
	adminAddr := flag.String("admin", "127.0.0.1:8080", "Admin HTTP server bind address")
	linkAddr := flag.String("link", "", "Server link bind address (empty disables inbound links)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Log startup configuration
	log.Printf("Starting IRC server with the following configuration:")
	log.Printf("IRC bind address: %s", *ircAddr)
	log.Printf("Admin bind address: %s", *adminAddr)
	log.Printf("Link bind address: %s", *linkAddr)
	log.Printf("Debug logging: %v", *debug)

	server, err := irc.NewServer(*ircAddr, *adminAddr, *linkAddr)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	server.Config.Debug = *debug

	log.Println("Starting IRC server...")
	if err := server.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Println("IRC server started successfully!")

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	log.Println("Server is running. Press Ctrl+C to stop.")
	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			if err := server.Rehash(); err != nil {
				log.Printf("Rehash failed: %v", err)
			}
			continue
		}
		break
	}
	log.Println("Shutdown signal received, stopping server...")

	server.Stop()
	log.Println("Server stopped. Goodbye!")
}

// Command vapidgen prints a fresh VAPID key pair for web push.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/SherClockHolmes/webpush-go"
)

func main() {
	subscriber := flag.String("subscriber", "mailto:admin@wayfarer.app", "contact URI sent to push services")
	flag.Parse()

	// GenerateVAPIDKeys returns the private key first.
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to generate VAPID keys:", err)
		os.Exit(1)
	}

	fmt.Println("# Add these to your .env file")
	fmt.Printf("VAPID_PUBLIC_KEY=%s\n", publicKey)
	fmt.Printf("VAPID_PRIVATE_KEY=%s\n", privateKey)
	fmt.Printf("VAPID_SUBSCRIBER=%s\n", *subscriber)
}

// Command orgstatus runs the multi-tenant status page server.
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("error executing root command: %s", err)
	}
}

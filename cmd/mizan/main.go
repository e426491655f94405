// Mizan - Halal status resolution for food products.
// Copyright (c) 2026 opensource.food
// Licensed under the Apache License 2.0

// Mizan resolves the halal status of a food product from its certification
// labels, additive tags and ingredient text.
//
// Usage:
//
//	# Start the HTTP API (and the async worker when enabled)
//	mizan serve --config mizan.yaml
//
//	# Analyze one product from the command line
//	mizan analyze --ingredients "gélatine de porc, sucre" --madhab hanafi
//
//	# Write the built-in corpus into the configured database
//	mizan seed
package main

func main() {
	Execute()
}

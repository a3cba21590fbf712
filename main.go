// =============================================================================
// Donation Importer - Main Entry Point
// =============================================================================
//
// USAGE:
//   importer inspect FILE     - Show headers, suggested mapping and preview
//   importer process FILE     - Map, transform and submit one file
//   importer review FILE      - Interactive import session
//   importer validate [FILES] - Dry-run many files concurrently
//   importer serve            - HTTP session API
//   importer version          - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Decoding, mapping, transformation, review, session state
//                  machine, submission and the HTTP API
//   - pkg/       : File discovery and archival utilities
//
// =============================================================================

package main

import (
	"github.com/Beto18v/AdoptaFacil-sub000/cmd"
)

func main() {
	cmd.Execute()
}

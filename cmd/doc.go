// Package cmd provides the folio command-line interface.
//
// # Available Commands
//
//   - build: Build the site into the output directory
//   - serve: Build, watch and serve the site with live reload
//   - config: Print the resolved configuration
//   - version: Print version information
//
// # Configuration
//
// Settings are resolved from, highest priority first:
//
//  1. Command-line flags
//  2. Environment variables (FOLIO_*, plus ELEVENTY_PRODUCTION and
//     GITHUB_REPOSITORY)
//  3. A .env file in the working directory
//  4. The configuration file (.folio.yml)
//  5. Defaults
//
// ELEVENTY_PRODUCTION set to any non-empty value selects a production
// build. GITHUB_REPOSITORY of the form owner/name serves the site under
// /name/.
package cmd

// Package main provides the entry point for the ndireport CLI.
//
// ndireport exports the endpoint inventory of a Nexus Dashboard Insights
// site into a formatted spreadsheet.
//
// Usage:
//
//	ndireport
//	ndireport export --site fabric-1 --format markdown
//	ndireport history fabric-1
//
// See --help for all available options.
package main

// main is the entry point for ndireport.
func main() {
	Execute()
}

// The maintenance CLI drives the conflict cleanup pipeline against a live
// database. The intended order for a cleanup pass is fixed:
//
//	gameshelf-maint audit
//	gameshelf-maint snapshot
//	gameshelf-maint resolve --snapshot <id>
//	gameshelf-maint audit   (must report zero conflicts)
//
// or `gameshelf-maint pipeline` to run all four steps in one go.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command wardenctl administers a goWarden deployment: schema migration,
// role seeding, user creation, password hashing and audit trail queries.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(defaultOpener).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command docctl drives the extraction pipeline and the retrieval service from a shell.
//
//	docctl extract ./policy.pdf
//	docctl query --user u1 "Is water damage covered?"
//	docctl clear --user u1
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

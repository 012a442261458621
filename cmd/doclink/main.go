// doclink links incoming JSON documents to registered samples and groups
// documents that share attribute values.
package main

import (
	"os"

	"github.com/corey/doclink/cmd/doclink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

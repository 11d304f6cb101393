// histchat is a CLI for searching and summarizing personal browsing history
// with hybrid vector + keyword retrieval.
package main

import (
	"fmt"
	"os"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/cmd/histchat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Command shoplist-e2e runs the end-to-end UI suite for the shopping list app.
package main

import "github.com/devicelab-dev/shoplist-e2e/pkg/cli"

func main() {
	cli.Execute()
}

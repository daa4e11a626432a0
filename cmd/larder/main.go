// Command larder tracks food items, their expiry dates and their photos.
package main

import "github.com/mesh-intelligence/larder/internal/cli"

func main() {
	cli.Execute()
}

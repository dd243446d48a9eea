// Command glimmerdeps fetches, builds and installs the native dependencies
// of the Glimmer GUI toolkit, builds Glimmer itself and merges everything
// into one static library.
package main

import "github.com/goplus/glimmerdeps/cmd/glimmerdeps/internal"

func main() {
	internal.Execute()
}

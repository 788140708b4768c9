// The main package for the imgcrawl executable.
package main

import (
	"github.com/JakeFAU/article-image-crawler/cmd"
)

func main() {
	cmd.Execute()
}

//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Search runs an aggregate search for query and files it in the library.
// Usage: mage search "community acquired pneumonia".
func Search(query string) error {
	mg.Deps(Init)
	return sh.RunV("go", "run", "-tags", buildTags, cmdPkg, "search", "--save", query)
}

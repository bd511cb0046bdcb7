// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/pkgsmith/pkgsmith/cmd/pkgsmith"

func main() {
	cmd.Execute()
}

package cmd

import (
	"fmt"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

const banner = `
  _   _                       _           _
 | \ | | _____      _____  __| | ___  ___| | __
 |  \| |/ _ \ \ /\ / / __|/ _` + "`" + ` |/ _ \/ __| |/ /
 | |\  |  __/\ V  V /\__ \ (_| |  __/\__ \   <
 |_| \_|\___| \_/\_/ |___/\__,_|\___||___/_|\_\

`

func printBanner() {
	fmt.Printf("\x1b[31m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  News Portal Admin Console - Version %s\x1b[0m\n\n", Version)
}

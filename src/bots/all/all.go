// Package all links every bundled bot class and resource class into a binary.
package all

import (
	_ "github.com/stake-plus/ibots/src/bots/hello"
	_ "github.com/stake-plus/ibots/src/bots/tester"
	_ "github.com/stake-plus/ibots/src/resources"
)

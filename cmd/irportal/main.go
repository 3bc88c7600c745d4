// Command irportal は投資家向けIRポータルのAPIサーバーを起動する。
//
// 使い方:
//
//	irportal [serve|migrate|bootstrap|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/irportal/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

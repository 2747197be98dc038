// Command authcgi is the credential process the server spawns for
// /api/register and /api/login:
//
//	auth.cgi <username> <password> <authtype>
//
// It prints one status line on stdout and exits 0 when the request was
// handled, 1 on internal failure. AUTH_STORE overrides the store path.
package main

import (
	"fmt"
	"os"

	"github.com/codetesla51/webserv/credstore"
)

func main() {
	if len(os.Args) != 4 {
		fmt.Println(credstore.StatusLine(credstore.StatusBadAuthType, "usage: auth <username> <password> <authtype>"))
		os.Exit(1)
	}

	path := os.Getenv("AUTH_STORE")
	if path == "" {
		path = "usertable.txt"
	}

	status := credstore.Open(path).Run(os.Args[1], os.Args[2], os.Args[3])
	fmt.Println(status.Line())
	if !status.Handled() {
		os.Exit(1)
	}
}

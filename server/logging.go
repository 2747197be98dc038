package server

import (
	"log"
	"strconv"

	"github.com/fatih/color"
)

// logRequest echoes one access line to the console with color-coded status
func logRequest(method, path string, status int) {
	code := strconv.Itoa(status)
	switch {
	case status == 200:
		log.Print(color.GreenString("%s %s %s", method, path, code))
	case status >= 400 && status < 500:
		log.Print(color.RedString("%s %s %s", method, path, code))
	case status >= 500:
		log.Print(color.MagentaString("%s %s %s", method, path, code))
	default:
		log.Printf("%s %s %s", method, path, code)
	}
}

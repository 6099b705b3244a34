package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass bearer authentication.
var publicPaths = map[string]bool{
	"/":              true,
	"/health":        true,
	"/health/db":     true,
	"/metrics":       true,
	"/auth/cadastro": true,
	"/auth/login":    true,
}

func Skipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}

package main

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed static
var staticFiles embed.FS

func staticFileSystem() http.FileSystem {
	fsys, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}

	return http.FS(fsys)
}

func registerStaticHandler(e *echo.Echo) {
	assetHandler := echo.WrapHandler(http.FileServer(staticFileSystem()))
	e.GET("/", assetHandler)
	e.GET("/static/*", echo.WrapHandler(http.StripPrefix("/static/", http.FileServer(staticFileSystem()))))
}

package main

// General API documentation for swaggo. Run `swag init -g cmd/translatord/docs.go -o internal/httpapi/docs` to regenerate.
//
// @title           translatord API
// @version         1.0
// @description     Sinhala to English translation over HTTP (mBART-50 with a LoRA adapter).
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
